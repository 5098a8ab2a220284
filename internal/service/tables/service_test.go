package tables

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/tablego/internal/events"
	"github.com/kirinyoku/tablego/internal/repository/gormstore"
	"github.com/kirinyoku/tablego/internal/rules"
)

func newService(t *testing.T) (*Service, *events.Recorder) {
	t.Helper()

	store, err := gormstore.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	rec := &events.Recorder{}
	return New(store, nil, rec, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{}), rec
}

func TestCreateGetList(t *testing.T) {
	svc, rec := newService(t)
	ctx := context.Background()

	bar, err := svc.Create(ctx, rules.NewTablePayload(map[string]any{"table_name": "Bar #1", "capacity": 1.0}))
	require.NoError(t, err)
	assert.NotZero(t, bar.ID)
	assert.False(t, bar.Occupied())

	one, err := svc.Create(ctx, rules.NewTablePayload(map[string]any{"table_name": " #1 ", "capacity": 6.0}))
	require.NoError(t, err)
	assert.Equal(t, "#1", one.Name)

	got, err := svc.Get(ctx, bar.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bar #1", got.Name)
	assert.Equal(t, 1, got.Capacity)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "#1", list[0].Name)
	assert.Equal(t, "Bar #1", list[1].Name)

	assert.Len(t, rec.Events(), 2)
}

func TestCreate_Invalid(t *testing.T) {
	svc, rec := newService(t)

	_, err := svc.Create(context.Background(), rules.NewTablePayload(map[string]any{"table_name": "A", "capacity": 2.0}))
	msg, ok := rules.MessageOf(err)
	require.True(t, ok)
	assert.Equal(t, "table_name is required", msg)
	assert.Empty(t, rec.Events())
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Get(context.Background(), 7)
	msg, _ := rules.MessageOf(err)
	assert.Equal(t, "table_id 7 does not exist", msg)
	assert.Equal(t, rules.KindNotFound, rules.KindOf(err))
}
