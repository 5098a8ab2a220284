package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhoneContains(t *testing.T) {
	cases := map[string]string{
		"(800) 555-1212": "%8005551212%",
		"5_5":            "%5!_5%",
		"5%5":            "%5!%5%",
		"a!b":            "%a!!b%",
		"":               "%%",
	}

	for in, want := range cases {
		assert.Equal(t, want, PhoneContains(in), in)
	}
}
