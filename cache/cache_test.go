package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/sosharvest/models"
)

func TestRunCache_PutGet(t *testing.T) {
	c := New(4, time.Hour)
	st := &models.RunStatus{ID: "r1", State: models.RunRunning, StartedAt: time.Now()}
	c.Put(st)

	got, ok := c.Get("r1")
	require.True(t, ok)
	assert.Equal(t, models.RunRunning, got.State)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestRunCache_CopiesValues(t *testing.T) {
	c := New(4, time.Hour)
	st := &models.RunStatus{ID: "r1", State: models.RunRunning, Result: models.Succeeded(2, 1)}
	c.Put(st)

	st.State = models.RunFailed
	st.Result.OK = false

	got, _ := c.Get("r1")
	assert.Equal(t, models.RunRunning, got.State)
	assert.True(t, got.Result.OK)

	got.State = "mutated"
	again, _ := c.Get("r1")
	assert.Equal(t, models.RunRunning, again.State)
}

func TestRunCache_EvictsOldest(t *testing.T) {
	c := New(2, time.Hour)
	c.Put(&models.RunStatus{ID: "a"})
	c.Put(&models.RunStatus{ID: "b"})
	c.Put(&models.RunStatus{ID: "c"})

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestRunCache_Expires(t *testing.T) {
	c := New(2, 20*time.Millisecond)
	c.Put(&models.RunStatus{ID: "a"})
	assert.Eventually(t, func() bool {
		_, ok := c.Get("a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}
