// Package timeutil provides a testable abstraction over time operations.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides an abstraction over time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockClock is a manually controlled clock for testing.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a new MockClock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set sets the mock clock to a specific time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the mock clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Since returns the duration since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// ReferenceClock reports a server-supplied "now" when one has been recorded and
// falls back to the local clock otherwise. The server timestamp is advanced by
// the local time elapsed since it was recorded, so it keeps moving without
// inheriting the client's absolute skew.
type ReferenceClock struct {
	local      Clock
	serverNow  time.Time
	recordedAt time.Time
	hasServer  bool
}

// NewReferenceClock wraps local. A nil local clock uses RealClock.
func NewReferenceClock(local Clock) *ReferenceClock {
	if local == nil {
		local = RealClock{}
	}
	return &ReferenceClock{local: local}
}

// SetServerNow records the server's notion of the current time.
// A zero time clears it.
func (c *ReferenceClock) SetServerNow(t time.Time) {
	if t.IsZero() {
		c.hasServer = false
		return
	}
	c.serverNow = t
	c.recordedAt = c.local.Now()
	c.hasServer = true
}

// HasServerTime reports whether a server timestamp is in use.
func (c *ReferenceClock) HasServerTime() bool {
	return c.hasServer
}

// Now returns the reference time.
func (c *ReferenceClock) Now() time.Time {
	if !c.hasServer {
		return c.local.Now()
	}
	return c.serverNow.Add(c.local.Since(c.recordedAt))
}

// Since returns the reference duration since t.
func (c *ReferenceClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}
