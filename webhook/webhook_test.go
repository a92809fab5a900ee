package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/scrapedesk/models"
)

func TestDeliverSigned(t *testing.T) {
	var gotSig, gotUA string
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		gotUA = r.Header.Get("User-Agent")
		assert.Equal(t, "sha256="+Sign("s3cret", body), gotSig)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := New(srv.URL, "s3cret")
	err := n.Deliver(context.Background(), &Event{Type: EventSucceeded, OperationKey: "k1"})
	require.NoError(t, err)
	assert.NotEmpty(t, gotSig)
	assert.Equal(t, "Scrapedesk-Webhook/1.0", gotUA)
	assert.Equal(t, EventSucceeded, got.Type)
	assert.Equal(t, "k1", got.OperationKey)
}

func TestDeliverUnsignedAndRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(SignatureHeader))
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := New(srv.URL, "").Deliver(context.Background(), &Event{Type: EventFailed})
	assert.ErrorContains(t, err, "status 400")
}

func TestNotifyRetriesTerminalOnly(t *testing.T) {
	calls := make(chan Event, 4)
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var e Event
		_ = json.NewDecoder(r.Body).Decode(&e)
		calls <- e
	}))
	defer srv.Close()

	n := New(srv.URL, "")
	n.delays = []time.Duration{0, time.Millisecond}

	n.Notify(models.Operation{Status: models.StatusRunning, Key: "k0"})
	n.Notify(models.Operation{Status: models.StatusCancelled, Key: "k1"})

	select {
	case e := <-calls:
		assert.Equal(t, EventCancelled, e.Type)
		assert.Equal(t, "k1", e.OperationKey)
		assert.Equal(t, models.StatusCancelled, e.Data.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestDisabled(t *testing.T) {
	var n *Notifier
	assert.False(t, n.Enabled())
	n.Notify(models.Operation{Status: models.StatusSucceeded})
	assert.False(t, New("", "x").Enabled())
}

func TestEventType(t *testing.T) {
	assert.Equal(t, EventSucceeded, EventType(models.StatusSucceeded))
	assert.Equal(t, EventFailed, EventType(models.StatusFailed))
	assert.Equal(t, EventCancelled, EventType(models.StatusCancelled))
	assert.Empty(t, EventType(models.StatusRunning))
	assert.Empty(t, EventType(models.StatusIdle))
}
