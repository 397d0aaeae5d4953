// Package connectivity tells the offline queue whether the remote store can
// be reached.
package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Signal is an online/offline probe with transition events.
type Signal interface {
	// Online reports the last known state.
	Online() bool

	// Subscribe returns a channel that receives the new state on every
	// transition, and a function that stops the subscription.
	Subscribe() (<-chan bool, func())
}

var _ Signal = (*Monitor)(nil)

// Monitor is a Signal driven by Set, either directly or by Poll.
type Monitor struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]chan bool
}

// NewMonitor creates a Monitor in the given initial state.
func NewMonitor(online bool) *Monitor {
	return &Monitor{online: online, subs: make(map[int]chan bool)}
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan bool, 1)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

// Set records the current state and notifies subscribers when it changed.
// A slow subscriber only ever sees the latest state.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return
	}
	m.online = online
	slog.Info("Connectivity changed", "online", online)

	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
}

// Poll probes url every interval until ctx is done, calling Set with the
// result. Any HTTP response below 500 counts as online.
func (m *Monitor) Poll(ctx context.Context, client *http.Client, url string, interval time.Duration) {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.Set(probe(ctx, client, url))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Probe checks url once and records the result.
func (m *Monitor) Probe(ctx context.Context, client *http.Client, url string) bool {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	online := probe(ctx, client, url)
	m.Set(online)
	return online
}

func probe(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Debug("Connectivity probe failed", "url", url, "error", err)
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		slog.Debug("Connectivity probe failed", "url", url, "error", err)
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
