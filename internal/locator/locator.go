// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package locator holds the position backends the acquisition queries and the helpers they share.
package locator

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"

	"github.com/agricure/agricure-locate/internal/acquisition"
)

// ErrorInfoFrom classifies a backend error into the acquisition error taxonomy. Errors that do not
// wrap a more specific cause are reported as an unavailable position.
func ErrorInfoFrom(err error) acquisition.ErrorInfo {
	if err == nil {
		return acquisition.NewErrorInfo(acquisition.CodeUnspecified, "")
	}
	var info acquisition.ErrorInfo
	if errors.As(err, &info) {
		return info
	}

	var netErr net.Error
	code := acquisition.CodePositionUnavailable
	switch {
	case errors.Is(err, acquisition.ErrPermissionDenied):
		code = acquisition.CodePermissionDenied
	case errors.Is(err, acquisition.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		code = acquisition.CodeTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		code = acquisition.CodeTimeout
	case errors.Is(err, context.Canceled):
		code = acquisition.CodeUnspecified
	}
	return acquisition.NewErrorInfo(code, err.Error())
}

// Chain combines several capabilities into one. It is available as long as one member is. A query
// goes to the first available member; if that fails with a retryable error the next available
// member is asked, and the failure of the last one tried is reported. Members are checked and
// queried on a separate goroutine.
type Chain struct {
	members []acquisition.Capability
}

// NewChain returns a Chain over the non-nil members in the given order.
func NewChain(members ...acquisition.Capability) *Chain {
	chain := &Chain{}
	for _, m := range members {
		if m != nil {
			chain.members = append(chain.members, m)
		}
	}
	return chain
}

// Name lists the member names, e.g. "chain(geoclue,gpsd)".
func (c *Chain) Name() string {
	names := make([]string, 0, len(c.members))
	for _, m := range c.members {
		names = append(names, m.Name())
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c *Chain) Available() bool {
	for _, m := range c.members {
		if m.Available() {
			return true
		}
	}
	return false
}

func (c *Chain) QueryCurrentPosition(ctx context.Context, onSuccess func(acquisition.Coordinates),
	onFailure func(acquisition.ErrorInfo),
) {
	go c.query(ctx, 0, onSuccess, onFailure, nil)
}

func (c *Chain) query(ctx context.Context, from int, onSuccess func(acquisition.Coordinates),
	onFailure func(acquisition.ErrorInfo), last *acquisition.ErrorInfo,
) {
	for i := from; i < len(c.members); i++ {
		member := c.members[i]
		if !member.Available() {
			continue
		}

		var once sync.Once
		next := i + 1
		member.QueryCurrentPosition(ctx,
			func(coords acquisition.Coordinates) {
				once.Do(func() {
					if coords.Source == "" {
						coords.Source = member.Name()
					}
					onSuccess(coords)
				})
			},
			func(info acquisition.ErrorInfo) {
				once.Do(func() {
					if !info.Code.Retryable() || ctx.Err() != nil {
						onFailure(info)
						return
					}
					c.query(ctx, next, onSuccess, onFailure, &info)
				})
			},
		)
		return
	}

	info := acquisition.NewErrorInfo(acquisition.CodePositionUnavailable, "no location backend available")
	if last != nil {
		info = *last
	}
	onFailure(info)
}
