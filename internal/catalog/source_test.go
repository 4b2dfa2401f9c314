package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticSource_Pages(t *testing.T) {
	src := NewStaticSource(
		[]ProductSnapshot{{ID: "A"}, {ID: "B"}},
		[]ProductSnapshot{{ID: "C"}},
	)

	p1, err := src.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, p1.TotalPages)
	assert.Equal(t, 1, p1.Number)
	assert.Len(t, p1.Products, 2)

	p2, err := src.FetchPage(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "C", p2.Products[0].ID)

	_, err = src.FetchPage(context.Background(), 3)
	assert.Error(t, err)

	assert.Equal(t, []int{1, 2, 3}, src.Calls())
}

func TestStaticSource_FailPage(t *testing.T) {
	boom := errors.New("boom")
	src := NewStaticSource([]ProductSnapshot{{ID: "A"}}, []ProductSnapshot{{ID: "B"}})
	src.FailPage(2, boom)

	_, err := src.FetchPage(context.Background(), 2)
	assert.ErrorIs(t, err, boom)
}

func TestStaticSource_ReturnsCopies(t *testing.T) {
	src := NewStaticSource([]ProductSnapshot{{ID: "A", Price: 10}})

	p, err := src.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	p.Products[0].Price = 99

	again, err := src.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, again.Products[0].Price)
}

func TestStaticSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStaticSource([]ProductSnapshot{{ID: "A"}}).FetchPage(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
