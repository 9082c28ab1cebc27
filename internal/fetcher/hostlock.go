package fetcher

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultHostPollInterval is how often a waiting job rechecks a busy host.
const DefaultHostPollInterval = 100 * time.Millisecond

// HostLocks tracks hosts that currently have a serialized fetch in flight.
// The conflict check and the registration happen under one mutex, so two
// jobs for the same host can never both pass the check.
type HostLocks struct {
	mu           sync.Mutex
	active       map[string]chan struct{}
	pollInterval time.Duration
}

// NewHostLocks creates an empty registry.
func NewHostLocks(pollInterval time.Duration) *HostLocks {
	if pollInterval <= 0 {
		pollInterval = DefaultHostPollInterval
	}
	return &HostLocks{
		active:       make(map[string]chan struct{}),
		pollInterval: pollInterval,
	}
}

// Acquire registers host as busy, waiting while another job holds it. The
// wait wakes on the holder's release or every poll interval, whichever comes
// first. The returned release func is safe to call more than once.
func (h *HostLocks) Acquire(ctx context.Context, host string) (func(), error) {
	for {
		if release, ok := h.tryAcquire(host); ok {
			return release, nil
		}
		h.mu.Lock()
		done, busy := h.active[host]
		h.mu.Unlock()
		if !busy {
			continue
		}
		timer := time.NewTimer(h.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("wait for host %s: %w", host, ctx.Err())
		case <-done:
		case <-timer.C:
		}
		timer.Stop()
	}
}

func (h *HostLocks) tryAcquire(host string) (func(), bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, busy := h.active[host]; busy {
		return nil, false
	}
	done := make(chan struct{})
	h.active[host] = done

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			if h.active[host] == done {
				delete(h.active, host)
			}
			h.mu.Unlock()
			close(done)
		})
	}, true
}

// Active lists the hosts currently held, sorted.
func (h *HostLocks) Active() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	hosts := make([]string, 0, len(h.active))
	for host := range h.active {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts
}

// Len is the number of hosts currently held.
func (h *HostLocks) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.active)
}
