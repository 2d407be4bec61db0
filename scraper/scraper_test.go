package scraper

import (
	"testing"

	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTrackerDomain(t *testing.T) {
	assert.True(t, isTrackerDomain("google-analytics.com"))
	assert.True(t, isTrackerDomain("www.Google-Analytics.com"))
	assert.True(t, isTrackerDomain("stats.g.doubleclick.net"))
	assert.False(t, isTrackerDomain("direct.sos.state.tx.us"))
	assert.False(t, isTrackerDomain(""))
}

func TestBlockedSet(t *testing.T) {
	set := blockedSet([]string{"Image", "Font", "Bogus"})
	assert.Len(t, set, 2)
	_, ok := set[proto.NetworkResourceTypeImage]
	assert.True(t, ok)
	assert.Empty(t, blockedSet(nil))
}

func TestExtractTitle(t *testing.T) {
	assert.Equal(t, "SOSDirect Login", extractTitle([]byte(`<html><head><title> SOSDirect Login </title></head></html>`)))
	assert.Equal(t, "", extractTitle([]byte(`<html><body>no title</body></html>`)))
	assert.Equal(t, "", extractTitle([]byte(`<title></title>`)))
}

func TestKeyFor(t *testing.T) {
	k, err := keyFor("Enter")
	require.NoError(t, err)
	assert.Equal(t, input.Enter, k)

	_, err = keyFor("F13")
	assert.Error(t, err)
}

func TestToHeadersMap(t *testing.T) {
	m := toHeadersMap(map[string]string{"X-Client": "sosharvest"})
	require.Contains(t, m, "X-Client")
	assert.Equal(t, "sosharvest", m["X-Client"].Str())
}
