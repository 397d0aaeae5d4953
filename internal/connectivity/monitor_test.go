package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_SetNotifiesOnTransitions(t *testing.T) {
	m := NewMonitor(false)
	events, stop := m.Subscribe()
	defer stop()

	m.Set(false) // no change, no event
	m.Set(true)

	select {
	case online := <-events:
		assert.True(t, online)
	case <-time.After(time.Second):
		t.Fatal("no transition event")
	}
	assert.True(t, m.Online())

	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event %v", ev)
	default:
	}
}

func TestMonitor_SlowSubscriberSeesLatest(t *testing.T) {
	m := NewMonitor(false)
	events, stop := m.Subscribe()
	defer stop()

	m.Set(true)
	m.Set(false)
	m.Set(true)

	assert.True(t, <-events)
}

func TestMonitor_StopClosesChannel(t *testing.T) {
	m := NewMonitor(true)
	events, stop := m.Subscribe()
	stop()
	stop()

	_, ok := <-events
	assert.False(t, ok)
	m.Set(false) // must not panic on a closed subscriber
}

func TestMonitor_Poll(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMonitor(false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Poll(ctx, srv.Client(), srv.URL, 10*time.Millisecond)

	require.Eventually(t, m.Online, time.Second, 5*time.Millisecond)

	healthy.Store(false)
	require.Eventually(t, func() bool { return !m.Online() }, time.Second, 5*time.Millisecond)
}

func TestMonitor_Probe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	m := NewMonitor(false)

	// Any answer below 500 means the network works.
	assert.True(t, m.Probe(context.Background(), nil, srv.URL))
	assert.True(t, m.Online())

	srv.Close()
	assert.False(t, m.Probe(context.Background(), nil, srv.URL))
	assert.False(t, m.Online())
}
