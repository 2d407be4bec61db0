package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hookURL = "https://hooks.example.com/sosharvest"

func TestDeliver_SignsBody(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	var gotSig, gotUA string
	var gotEvent Event
	httpmock.RegisterResponder(http.MethodPost, hookURL, func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		gotSig = req.Header.Get(SignatureHeader)
		gotUA = req.Header.Get("User-Agent")
		if err := json.Unmarshal(body, &gotEvent); err != nil {
			return nil, err
		}
		if gotSig != Sign("s3cret", body) {
			return httpmock.NewStringResponse(http.StatusUnauthorized, "bad signature"), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, "ok"), nil
	})

	ev := NewEvent(EventCompleted, "run-1", map[string]any{"ok": true, "total": 2})
	require.NoError(t, Deliver(context.Background(), hookURL, "s3cret", ev))

	assert.Equal(t, "Sosharvest-Webhook/1.0", gotUA)
	assert.Contains(t, gotSig, "sha256=")
	assert.Equal(t, EventCompleted, gotEvent.Type)
	assert.Equal(t, "run-1", gotEvent.RunID)
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, hookURL, func(req *http.Request) (*http.Response, error) {
		assert.Empty(t, req.Header.Get(SignatureHeader))
		return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
	})
	require.NoError(t, Deliver(context.Background(), hookURL, "", NewEvent(EventFailed, "run-2", nil)))
}

func TestDeliver_ErrorStatus(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, hookURL, httpmock.NewStringResponder(http.StatusBadGateway, "down"))
	err := Deliver(context.Background(), hookURL, "", NewEvent(EventFailed, "run-3", nil))
	assert.ErrorContains(t, err, "502")
}

func TestDeliverAsync_Retries(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	saved := retryDelays
	retryDelays = []time.Duration{0, time.Millisecond, time.Millisecond}
	defer func() { retryDelays = saved }()

	httpmock.RegisterResponder(http.MethodPost, hookURL,
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "busy").
			Then(httpmock.NewStringResponder(http.StatusOK, "ok")))

	done := make(chan struct{})
	DeliverAsync(hookURL, "", NewEvent(EventCompleted, "run-4", nil), done)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("delivery did not finish")
	}
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestSign(t *testing.T) {
	assert.Equal(t, Sign("k", []byte("body")), Sign("k", []byte("body")))
	assert.NotEqual(t, Sign("k", []byte("body")), Sign("other", []byte("body")))
}
