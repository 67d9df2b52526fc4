// Package ratelimit tracks the GitHub API quota reported by response headers.
//
// The governor only records state and warns when quota runs low. Decisions to
// wait or abort are made by the client from the headers of the response it
// is handling, never from the cached state kept here.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smy-101/skillpack/internal/logger"
	"github.com/smy-101/skillpack/internal/types"
)

const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderReset     = "X-RateLimit-Reset"

	// LowWaterMark is the remaining-quota level below which a warning is logged.
	LowWaterMark = 10
)

// Recorder is what the client needs from a governor.
type Recorder interface {
	Observe(h http.Header)
	Snapshot() types.RateLimitState
}

// Governor holds the last observed quota state.
type Governor struct {
	mu    sync.RWMutex
	state types.RateLimitState
	now   func() time.Time
	log   *logrus.Entry
}

// Default is the process-wide governor used by the CLI.
var Default = New()

// New creates an empty governor.
func New() *Governor {
	return &Governor{
		now: time.Now,
		log: logger.L.WithField("component", "ratelimit"),
	}
}

// SetLogger replaces the entry used for low-quota warnings.
func (g *Governor) SetLogger(l *logrus.Entry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.log = l
}

// Observe updates the state from response headers. Responses without an
// X-RateLimit-Remaining header (raw content host) leave the state untouched.
func (g *Governor) Observe(h http.Header) {
	remainingRaw := h.Get(HeaderRemaining)
	if remainingRaw == "" {
		return
	}
	remaining, err := strconv.Atoi(remainingRaw)
	if err != nil {
		return
	}

	now := g.now().UnixMilli()

	// Fields missing from this response keep their previous value.
	g.mu.Lock()
	next := copyState(g.state)
	next.Remaining = &remaining
	next.LastCheckedEpochMillis = &now
	if limit, err := strconv.Atoi(h.Get(HeaderLimit)); err == nil {
		next.Limit = &limit
	}
	if reset, err := strconv.ParseInt(h.Get(HeaderReset), 10, 64); err == nil {
		resetMillis := reset * 1000
		next.ResetEpochMillis = &resetMillis
	}
	g.state = next
	log := g.log
	g.mu.Unlock()

	if remaining < LowWaterMark {
		fields := logrus.Fields{"remaining": remaining}
		if next.Limit != nil {
			fields["limit"] = *next.Limit
		}
		if next.ResetEpochMillis != nil {
			fields["resets_at"] = next.ResetTime().Local().Format(time.Kitchen)
		}
		log.WithFields(fields).Warn("GitHub API rate limit low")
	}
}

// Snapshot returns a copy of the current state.
func (g *Governor) Snapshot() types.RateLimitState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return copyState(g.state)
}

// Reset clears all observed state.
func (g *Governor) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = types.RateLimitState{}
}

func copyState(s types.RateLimitState) types.RateLimitState {
	var out types.RateLimitState
	if s.Remaining != nil {
		v := *s.Remaining
		out.Remaining = &v
	}
	if s.Limit != nil {
		v := *s.Limit
		out.Limit = &v
	}
	if s.ResetEpochMillis != nil {
		v := *s.ResetEpochMillis
		out.ResetEpochMillis = &v
	}
	if s.LastCheckedEpochMillis != nil {
		v := *s.LastCheckedEpochMillis
		out.LastCheckedEpochMillis = &v
	}
	return out
}
