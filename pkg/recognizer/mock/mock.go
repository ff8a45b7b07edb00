// Package mock provides a test double for the recognizer interface.
//
// Pre-populate Segments (and optionally Err) with the values the consumer
// should receive, then inspect Calls to verify the signals the caller
// submitted.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/sonoscribe/pkg/recognizer"
)

// Recognizer is a mock implementation of recognizer.Recognizer.
type Recognizer struct {
	mu sync.Mutex

	// Segments is returned by every Transcribe call when Err is nil.
	Segments []string

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Calls records a copy of the samples passed to every Transcribe call,
	// in order.
	Calls [][]float32
}

// Transcribe records the call and returns Segments, Err.
func (m *Recognizer) Transcribe(_ context.Context, samples []float32) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]float32, len(samples))
	copy(cp, samples)
	m.Calls = append(m.Calls, cp)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Segments, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (m *Recognizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (m *Recognizer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// Ensure Recognizer implements recognizer.Recognizer at compile time.
var _ recognizer.Recognizer = (*Recognizer)(nil)
