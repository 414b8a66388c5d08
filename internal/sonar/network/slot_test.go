package network

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandSlot_OverwritesPending(t *testing.T) {
	var s CommandSlot
	assert.False(t, s.Pending())
	assert.Nil(t, s.Take())

	assert.False(t, s.Put([]byte{1}))
	assert.True(t, s.Put([]byte{2}), "second put replaces the first")
	assert.True(t, s.Pending())
	assert.Equal(t, []byte{2}, s.Take())
	assert.Nil(t, s.Take())
	assert.Equal(t, uint64(1), s.Overwritten())
}

func TestCommandSlot_CopiesInput(t *testing.T) {
	var s CommandSlot
	cmd := []byte{1, 2, 3}
	s.Put(cmd)
	cmd[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, s.Take())
}

func TestLatest_DropsStaleValues(t *testing.T) {
	q := NewLatest[int]()
	assert.False(t, q.Put(1))
	assert.True(t, q.Put(2))
	assert.True(t, q.Put(3))

	v, ok := q.Take()
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, uint64(2), q.Dropped())

	_, ok = q.Take()
	assert.False(t, ok)
}

func TestLatest_NextBlocksUntilPut(t *testing.T) {
	q := NewLatest[string]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Put("ping")
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := q.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ping", v)
}

func TestLatest_CloseAndContext(t *testing.T) {
	q := NewLatest[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	q.Put(7)
	q.Close()
	assert.False(t, q.Put(8), "put after close is ignored")
	v, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v, "stored value survives close")
	_, err = q.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
