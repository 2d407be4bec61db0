package harvest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/sosharvest/harvest"
	"github.com/use-agent/sosharvest/harvest/harvesttest"
	"github.com/use-agent/sosharvest/models"
)

func TestSanitizeKey(t *testing.T) {
	tests := map[string]string{
		"A1_LOGIN_PAGE":          "A1_LOGIN_PAGE",
		"FAIL_RA 60/not reached": "FAIL_RA_60_not_reached",
		"a  //  b":               "a_b",
		"dots.and-dashes":        "dots.and-dashes",
		"ünïcode":                "_n_code",
	}
	for in, want := range tests {
		assert.Equal(t, want, harvest.SanitizeKey(in), in)
	}
}

func recorderPage(t *testing.T) *harvesttest.Page {
	t.Helper()
	page := harvesttest.NewPage(map[string]string{
		"results": harvesttest.ResultsScreen("", []string{"801234567", "ACME LLC"}),
	})
	require.NoError(t, page.Navigate(context.Background(), "results"))
	return page
}

func TestRecorder_AllCaptures(t *testing.T) {
	store := harvesttest.NewStore()
	rec := harvest.NewRecorder(recorderPage(t), store,
		harvest.CaptureOptions{HTML: true, Screenshot: true, Markdown: true},
		"https://direct.sos.state.tx.us", quietLogger())

	require.NoError(t, rec.Record(context.Background(), "A11 RA results/1"))

	assert.Equal(t, []string{"A11_RA_results_1.html", "A11_RA_results_1.md", "A11_RA_results_1.png"}, store.Keys())
	md, _ := store.Get("A11_RA_results_1.md")
	assert.Contains(t, string(md), "ACME LLC")
	assert.Equal(t, harvest.ContentTypeMarkdown, store.ContentType("A11_RA_results_1.md"))
	assert.Equal(t, harvest.ContentTypeHTML, store.ContentType("A11_RA_results_1.html"))
}

func TestRecorder_ScreenshotFailureSkipped(t *testing.T) {
	page := recorderPage(t)
	page.ScreenshotErr = errors.New("target closed")
	store := harvesttest.NewStore()
	rec := harvest.NewRecorder(page, store, harvest.CaptureOptions{HTML: true, Screenshot: true}, "", quietLogger())

	require.NoError(t, rec.Record(context.Background(), "A1_LOGIN_PAGE"))
	assert.Equal(t, []string{"A1_LOGIN_PAGE.html"}, store.Keys())
}

func TestRecorder_Disabled(t *testing.T) {
	store := harvesttest.NewStore()
	rec := harvest.NewRecorder(recorderPage(t), store, harvest.CaptureOptions{}, "", quietLogger())

	require.NoError(t, rec.Record(context.Background(), "A1_LOGIN_PAGE"))
	assert.Empty(t, store.Keys())
}

func TestRecorder_StoreFailureIsFatal(t *testing.T) {
	store := harvesttest.NewStore()
	store.Err = errors.New("bucket gone")
	rec := harvest.NewRecorder(recorderPage(t), store, harvest.CaptureOptions{HTML: true}, "", quietLogger())

	err := rec.Record(context.Background(), "A1_LOGIN_PAGE")
	var he *models.HarvestError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, models.ErrCodeStore, he.Code)

	err = rec.WriteResult(context.Background(), []byte(`{"ok":true}`))
	assert.Error(t, err)
}

func TestRecorder_WriteResult(t *testing.T) {
	store := harvesttest.NewStore()
	rec := harvest.NewRecorder(recorderPage(t), store, harvest.CaptureOptions{}, "", quietLogger())

	require.NoError(t, rec.WriteResult(context.Background(), []byte(`{"ok":true}`)))
	data, ok := store.Get("RESULT.json")
	require.True(t, ok)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	assert.Equal(t, harvest.ContentTypeJSON, store.ContentType("RESULT.json"))
}
