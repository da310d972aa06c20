package core

// upload_limiter.go bounds how many uploads run at once.
//
// An upload clears and rewrites the whole store, so two uploads overlapping
// only waste work before one of them fails on a serialization conflict. The
// default of one slot makes uploads queue in-process instead. Callers wait
// up to maxWait for a slot before ErrTooManyUploads.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyUploads is returned when no upload slot frees up within the wait
// time. Clients should retry after a short delay.
var ErrTooManyUploads = errors.New("too many concurrent uploads, please try again later")

// ErrUploadsDraining is returned by Acquire once WaitForDrain has started.
var ErrUploadsDraining = errors.New("uploads are draining for shutdown")

const (
	DefaultMaxConcurrentUploads = 1
	DefaultMaxWaitTime          = 30 * time.Second
)

// UploadLimiter is a counting semaphore over upload processing.
type UploadLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	// mu orders inflight.Add against the start of WaitForDrain.
	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

// NewUploadLimiter allows at most maxConcurrent uploads at once.
// Non-positive arguments fall back to the defaults.
func NewUploadLimiter(maxConcurrent int, maxWait time.Duration) *UploadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentUploads
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &UploadLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire blocks until a slot is free, ctx is done, or maxWait elapses.
// Every successful Acquire must be paired with Release. After WaitForDrain
// has been called it fails with ErrUploadsDraining.
func (l *UploadLimiter) Acquire(ctx context.Context) error {
	if l.isDraining() {
		return ErrUploadsDraining
	}

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.draining {
			<-l.slots
			return ErrUploadsDraining
		}
		l.inflight.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyUploads
	}
}

// Release frees a slot taken by Acquire.
func (l *UploadLimiter) Release() {
	<-l.slots
	l.inflight.Done()
}

func (l *UploadLimiter) isDraining() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.draining
}

// WaitForDrain stops new acquires and blocks until every acquired slot has
// been released or ctx is done. It is used during shutdown.
func (l *UploadLimiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	l.draining = true
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UploadLimiterStatus is a point-in-time view of the limiter.
type UploadLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

func (l *UploadLimiter) Status() UploadLimiterStatus {
	active := len(l.slots)
	return UploadLimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
	}
}
