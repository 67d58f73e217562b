package challenge

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultTimeout bounds how long a registration attempt waits for an
// out-of-band push challenge before degrading to SMS/voice.
const DefaultTimeout = 5 * time.Second

// OutcomeKind discriminates the result of one challenge wait.
type OutcomeKind int

const (
	// OutcomeToken means a challenge token arrived before the deadline.
	OutcomeToken OutcomeKind = iota
	// OutcomeTimedOut means the deadline elapsed, or the delivered token
	// was empty. Not an error: the flow proceeds without push proof.
	OutcomeTimedOut
	// OutcomeNotRequired means the session never demanded a push challenge.
	OutcomeNotRequired
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeToken:
		return "token"
	case OutcomeTimedOut:
		return "timed out"
	case OutcomeNotRequired:
		return "not required"
	}
	return "unknown"
}

// Outcome is produced once per session by a Waiter and consumed exactly once
// by the coordinator.
type Outcome struct {
	Kind  OutcomeKind
	Token string
}

// Waiter is a single-value future written at most once by the notification
// source and awaited with a deadline by the coordinator.
type Waiter struct {
	once sync.Once
	ch   chan string
}

func NewWaiter() *Waiter {
	// Buffered so delivery never blocks the notification source, and a
	// token arriving before Wait is not lost.
	return &Waiter{ch: make(chan string, 1)}
}

// Deliver hands a challenge token to the waiter. The first delivery wins;
// every later one is a no-op.
func (w *Waiter) Deliver(token string) {
	w.once.Do(func() {
		w.ch <- token
	})
}

// Wait blocks until a token is delivered or timeout elapses. A cancelled
// context aborts the wait with ctx.Err so an abandoned attempt never reads a
// fabricated outcome.
func (w *Waiter) Wait(ctx context.Context, timeout time.Duration) (Outcome, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case token := <-w.ch:
		if token == "" {
			log.Warnln("[registration] push received but challenge token was empty")
			return Outcome{Kind: OutcomeTimedOut}, nil
		}
		log.Debugln("[registration] push challenge token received")
		return Outcome{Kind: OutcomeToken, Token: token}, nil
	case <-timer.C:
		log.Infoln("[registration] push challenge timed out")
		return Outcome{Kind: OutcomeTimedOut}, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Bus fans challenge tokens out to the waiters currently registered on it.
// A waiter must be registered before the request that can trigger delivery
// is issued, so a token racing the response is not lost.
type Bus struct {
	mu      sync.Mutex
	waiters map[*Waiter]struct{}
}

func NewBus() *Bus {
	return &Bus{waiters: make(map[*Waiter]struct{})}
}

func (b *Bus) Register(w *Waiter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.waiters[w] = struct{}{}
}

// Unregister removes the waiter. Safe to call on every exit path, including
// after the waiter already received a token.
func (b *Bus) Unregister(w *Waiter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.waiters, w)
}

// Publish delivers a token to all registered waiters.
func (b *Bus) Publish(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for w := range b.waiters {
		w.Deliver(token)
	}
}
