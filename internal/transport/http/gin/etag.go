package httpgin

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// writeCachedData answers a read with {data: v}, a weak ETag over the encoded
// body and Cache-Control: no-cache. Clients revalidate with If-None-Match and
// get 304 while the resource is unchanged.
func writeCachedData(c *gin.Context, v any) {
	b, err := json.Marshal(envelope{Data: v})
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
		return
	}

	sum := sha256.Sum256(b)
	tag := `W/"` + hex.EncodeToString(sum[:16]) + `"`

	c.Header("ETag", tag)
	c.Header("Cache-Control", "no-cache")

	if etagMatches(c.GetHeader("If-None-Match"), tag) {
		c.Status(http.StatusNotModified)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", b)
}

// etagMatches applies weak comparison against a comma separated
// If-None-Match list.
func etagMatches(header, tag string) bool {
	if header == "" {
		return false
	}

	bare := strings.TrimPrefix(tag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == bare {
			return true
		}
	}

	return false
}
