package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_AdvancesUntilExhausted(t *testing.T) {
	c := NewCursor(15)

	req, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, 1, req.Page)
	assert.Equal(t, 15, req.Size)
	assert.True(t, c.Loading)

	_, ok = c.Next()
	assert.False(t, ok, "second load while one is outstanding")

	require.True(t, c.Complete(req, 3))
	assert.Equal(t, 1, c.Page)
	assert.Equal(t, 3, c.Total)
	assert.False(t, c.Loading)

	for want := 2; want <= 3; want++ {
		req, ok = c.Next()
		require.True(t, ok)
		assert.Equal(t, want, req.Page)
		require.True(t, c.Complete(req, 3))
		assert.Equal(t, want, c.Page)
	}

	assert.True(t, c.Exhausted())
	_, ok = c.Next()
	assert.False(t, ok)
	assert.Equal(t, 3, c.Page)
}

func TestCursor_FailLeavesPageUnchanged(t *testing.T) {
	c := NewCursor(10)
	req, _ := c.Next()
	require.True(t, c.Complete(req, 5))

	req, ok := c.Next()
	require.True(t, ok)
	require.True(t, c.Fail(req))
	assert.Equal(t, 1, c.Page)
	assert.False(t, c.Loading)

	retry, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, req.Page, retry.Page)
}

func TestCursor_EmptyHistoryIsExhausted(t *testing.T) {
	c := NewCursor(10)
	req, _ := c.Next()
	require.True(t, c.Complete(req, 0))

	assert.True(t, c.Known())
	assert.True(t, c.Exhausted())
	_, ok := c.Next()
	assert.False(t, ok)
}

func TestCursor_ResetDropsStaleResults(t *testing.T) {
	c := NewCursor(10)
	req, _ := c.Next()

	c.Reset()
	assert.False(t, c.Complete(req, 4))
	assert.False(t, c.Fail(req))
	assert.Equal(t, 0, c.Page)
	assert.False(t, c.Known())
	assert.False(t, c.Loading)

	fresh, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, 1, fresh.Page)
}

func TestCursor_RefreshDoesNotRegress(t *testing.T) {
	c := NewCursor(10)
	for i := 0; i < 2; i++ {
		req, _ := c.Next()
		require.True(t, c.Complete(req, 4))
	}
	require.Equal(t, 2, c.Page)

	next, ok := c.Next()
	require.True(t, ok)

	r := c.Refresh()
	assert.Equal(t, 1, r.Page)
	require.True(t, c.Complete(r, 5))
	assert.Equal(t, 2, c.Page)
	assert.Equal(t, 5, c.Total)
	assert.True(t, c.Loading, "refresh must not end the outstanding backfill")

	require.True(t, c.Complete(next, 5))
	assert.Equal(t, 3, c.Page)
}

func TestNewCursor_ClampsSize(t *testing.T) {
	assert.Equal(t, 1, NewCursor(0).Size)
}
