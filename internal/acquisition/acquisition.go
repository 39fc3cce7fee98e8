// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package acquisition

import (
	"context"
	"sync"
	"time"
)

// Option configures an Acquisition.
type Option func(*Acquisition)

// WithStaleGuard discards callbacks that belong to a request older than the latest one. Without
// it, the last callback to arrive determines the state.
func WithStaleGuard() Option {
	return func(a *Acquisition) {
		a.guardStale = true
	}
}

// WithStaleHandler registers fn to be called with the request sequence of every discarded callback.
// It only fires in combination with WithStaleGuard.
func WithStaleHandler(fn func(request uint64)) Option {
	return func(a *Acquisition) {
		a.onStale = fn
	}
}

// WithClock replaces time.Now for the UpdatedAt field of snapshots.
func WithClock(now func() time.Time) Option {
	return func(a *Acquisition) {
		if now != nil {
			a.now = now
		}
	}
}

// Acquisition manages the lifecycle of position requests against a single Capability.
type Acquisition struct {
	capability Capability
	guardStale bool
	onStale    func(uint64)
	now        func() time.Time

	mu          sync.RWMutex
	state       State
	seq         uint64
	subscribers map[chan State]struct{}
}

// New returns an idle Acquisition for the given capability. A nil capability is treated as
// permanently unavailable.
func New(capability Capability, opts ...Option) *Acquisition {
	a := &Acquisition{
		capability:  capability,
		now:         time.Now,
		subscribers: make(map[chan State]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns a snapshot of the current acquisition state.
func (a *Acquisition) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.clone()
}

// CapabilityName returns the name of the underlying capability or an empty string if none is set.
func (a *Acquisition) CapabilityName() string {
	if a.capability == nil {
		return ""
	}
	return a.capability.Name()
}

// RequestPosition asks the capability for the current position. It never blocks on the capability
// and never returns an error: outcomes are observed through State and Subscribe.
func (a *Acquisition) RequestPosition(ctx context.Context) {
	if a.capability == nil || !a.capability.Available() {
		a.mu.Lock()
		a.seq++
		a.state.IsLoading = false
		a.state.Error = &ErrorInfo{Code: CodeUnsupported, Message: UnsupportedMessage}
		a.state.Request = a.seq
		a.state.UpdatedAt = a.now()
		snapshot := a.state.clone()
		a.broadcast(snapshot)
		a.mu.Unlock()
		return
	}

	a.mu.Lock()
	a.seq++
	request := a.seq
	a.state.IsLoading = true
	a.state.Error = nil
	a.state.Request = request
	a.state.UpdatedAt = a.now()
	a.broadcast(a.state.clone())
	a.mu.Unlock()

	// Only the first callback of a request counts, whichever kind it is.
	var once sync.Once
	onSuccess := func(c Coordinates) {
		once.Do(func() { a.resolveSuccess(request, c) })
	}
	onFailure := func(info ErrorInfo) {
		once.Do(func() { a.resolveFailure(request, info) })
	}
	a.capability.QueryCurrentPosition(ctx, onSuccess, onFailure)
}

// Subscribe registers an observer receiving every new snapshot, starting with the current one.
// Sends never block; an observer whose buffer is full misses that snapshot.
func (a *Acquisition) Subscribe(buffer int) (<-chan State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State, buffer)
	a.mu.Lock()
	a.subscribers[ch] = struct{}{}
	ch <- a.state.clone()
	a.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subscribers, ch)
			a.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

func (a *Acquisition) resolveSuccess(request uint64, c Coordinates) {
	a.resolve(request, func(s *State) {
		s.Position = &Position{
			Lat:      c.Latitude,
			Lng:      c.Longitude,
			Accuracy: c.Accuracy,
			Source:   c.Source,
		}
		s.Error = nil
	})
}

func (a *Acquisition) resolveFailure(request uint64, info ErrorInfo) {
	a.resolve(request, func(s *State) {
		s.Error = &info
	})
}

func (a *Acquisition) resolve(request uint64, apply func(*State)) {
	a.mu.Lock()
	if a.guardStale && request != a.seq {
		a.mu.Unlock()
		if a.onStale != nil {
			a.onStale(request)
		}
		return
	}
	apply(&a.state)
	a.state.IsLoading = false
	a.state.Request = request
	a.state.UpdatedAt = a.now()
	a.broadcast(a.state.clone())
	a.mu.Unlock()
}

// broadcast must be called with mu held.
func (a *Acquisition) broadcast(s State) {
	for ch := range a.subscribers {
		select {
		case ch <- s:
		default:
		}
	}
}
