// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package acquisition

import (
	"context"
	"time"
)

// Status is the state machine node derived from a State snapshot.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Coordinates is the payload a Capability delivers on success.
type Coordinates struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Source    string
}

// Capability is the host-provided position query the acquisition depends on.
//
// Available must answer synchronously. QueryCurrentPosition must not block the caller and is
// expected to invoke exactly one of the two callbacks, on a goroutine of its own choosing.
type Capability interface {
	Name() string
	Available() bool
	QueryCurrentPosition(ctx context.Context, onSuccess func(Coordinates), onFailure func(ErrorInfo))
}

// Position is the last successfully resolved coordinate pair.
type Position struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy,omitempty"`
	Source   string  `json:"source,omitempty"`
}

// State is a snapshot of the acquisition. Snapshots never share memory with the live state.
type State struct {
	IsLoading bool       `json:"isLoading"`
	Position  *Position  `json:"position"`
	Error     *ErrorInfo `json:"error"`

	Request   uint64    `json:"request"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Status derives the state machine node of the snapshot. A stale position next to an error is
// reported as StatusError.
func (s State) Status() Status {
	switch {
	case s.IsLoading:
		return StatusLoading
	case s.Error != nil:
		return StatusError
	case s.Position != nil:
		return StatusSuccess
	default:
		return StatusIdle
	}
}

// Resolved reports whether the snapshot is the outcome of a request.
func (s State) Resolved() bool {
	return s.Status() == StatusSuccess || s.Status() == StatusError
}

func (s State) clone() State {
	out := s
	if s.Position != nil {
		pos := *s.Position
		out.Position = &pos
	}
	if s.Error != nil {
		info := *s.Error
		out.Error = &info
	}
	return out
}
