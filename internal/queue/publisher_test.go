package queue

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/tablego/internal/events"
)

func TestEncode(t *testing.T) {
	ev := events.New(events.TableFreed, 3, 9, "finished")

	b, err := encode(ev)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "table.freed", m["type"])
	assert.EqualValues(t, 3, m["reservation_id"])
	assert.EqualValues(t, 9, m["table_id"])
}

func TestPublisher_RabbitMQ(t *testing.T) {
	url := os.Getenv("TEST_RABBITMQ_URL")
	if url == "" {
		t.Skip("TEST_RABBITMQ_URL not set")
	}

	queue := "tablego.test." + events.New(events.TableCreated, 0, 0, "").ID
	p, err := Dial(url, queue)
	require.NoError(t, err)
	defer p.Close()

	ev := events.New(events.TableCreated, 0, 4, "")
	require.NoError(t, p.Publish(context.Background(), ev))

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer func() { _, _ = ch.QueueDelete(queue, false, false, false) }()

	require.Eventually(t, func() bool {
		msg, ok, err := ch.Get(queue, true)
		return err == nil && ok && msg.MessageId == ev.ID
	}, 3*time.Second, 50*time.Millisecond)
}
