// Package cache remembers the status of recent runs for the status API.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/use-agent/sosharvest/models"
)

// DefaultTTL is how long a finished run stays queryable.
const DefaultTTL = 24 * time.Hour

// RunCache is a bounded, expiring map of run id to status. Values are
// copied in and out, so callers never share a status with the cache.
// It is safe for concurrent use.
type RunCache struct {
	lru *expirable.LRU[string, models.RunStatus]
}

// New creates a RunCache holding at most maxEntries runs for ttl each.
// ttl <= 0 uses DefaultTTL.
func New(maxEntries int, ttl time.Duration) *RunCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RunCache{lru: expirable.NewLRU[string, models.RunStatus](maxEntries, nil, ttl)}
}

// Put stores a snapshot of status under status.ID.
func (c *RunCache) Put(status *models.RunStatus) {
	c.lru.Add(status.ID, clone(status))
}

// Get returns a snapshot of the run's status.
func (c *RunCache) Get(id string) (*models.RunStatus, bool) {
	st, ok := c.lru.Get(id)
	if !ok {
		return nil, false
	}
	out := clone(&st)
	return &out, true
}

// Len returns the number of remembered runs.
func (c *RunCache) Len() int { return c.lru.Len() }

func clone(st *models.RunStatus) models.RunStatus {
	out := *st
	if st.FinishedAt != nil {
		t := *st.FinishedAt
		out.FinishedAt = &t
	}
	if st.Result != nil {
		r := *st.Result
		out.Result = &r
	}
	if st.Error != nil {
		e := *st.Error
		out.Error = &e
	}
	return out
}
