// Package source defines the search adapter contract shared by the
// OpenRouter, GitHub and Twitter integrations.
package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hotspot/internal/model"
)

// Adapter turns a keyword into platform candidates.
type Adapter interface {
	Platform() model.Platform
	Search(ctx context.Context, keyword string) ([]model.Candidate, error)
}

// Kind classifies adapter failures.
type Kind string

const (
	KindNotConfigured Kind = "not_configured"
	KindAuth          Kind = "auth"
	KindRateLimited   Kind = "rate_limited"
	KindTimeout       Kind = "timeout"
	KindNetwork       Kind = "network"
	KindBadResponse   Kind = "bad_response"
)

// Error is returned by every adapter. The aggregation loop treats any Error
// as an empty result for that platform.
type Error struct {
	Platform   model.Platform
	Kind       Kind
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Platform, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err (or any error in its chain) is an Error of kind k.
func IsKind(err error, k Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == k
}

func NotConfigured(p model.Platform, what string) *Error {
	return &Error{Platform: p, Kind: KindNotConfigured, Err: fmt.Errorf("%s not configured", what)}
}

// FromTransport classifies an error returned by an HTTP round trip.
func FromTransport(p model.Platform, err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &Error{Platform: p, Kind: KindTimeout, Err: err}
	}
	return &Error{Platform: p, Kind: KindNetwork, Err: err}
}

// FromStatus classifies a non-2xx response. body is an excerpt used for the message.
func FromStatus(p model.Platform, status int, header http.Header, body []byte) *Error {
	e := &Error{Platform: p, Status: status, Kind: KindBadResponse}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg != "" {
		e.Err = errors.New(msg)
	}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindAuth
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.RetryAfter = RetryAfter(header.Get("Retry-After"))
	case status == http.StatusForbidden && header.Get("X-RateLimit-Remaining") == "0":
		e.Kind = KindRateLimited
		e.RetryAfter = RetryAfter(header.Get("Retry-After"))
	case status == http.StatusForbidden:
		e.Kind = KindAuth
	}
	return e
}

// RetryAfter parses a Retry-After header value. It returns 0 when absent or
// unparsable; the value is informational only.
func RetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(v); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}

// Registry maps platforms to adapters.
type Registry struct {
	adapters map[model.Platform]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: map[model.Platform]Adapter{}}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for its platform.
func (r *Registry) Register(a Adapter) {
	if r.adapters == nil {
		r.adapters = map[model.Platform]Adapter{}
	}
	r.adapters[a.Platform()] = a
}

func (r *Registry) Resolve(p model.Platform) (Adapter, error) {
	if a, ok := r.adapters[p]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("adapter %s is not registered", p)
}

// For returns the adapters selected by sel in query order, skipping
// platforms with no registered adapter.
func (r *Registry) For(sel model.SourceSelection) []Adapter {
	var out []Adapter
	for _, p := range sel.Platforms() {
		if a, err := r.Resolve(p); err == nil {
			out = append(out, a)
		}
	}
	return out
}
