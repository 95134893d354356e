// Package background groups goroutines under one cancellation.
package background

import (
	"context"
	"sync"
)

// Scope - abstract concurrency scope
type Scope struct {
	ctx       context.Context
	ctxCancel context.CancelFunc
	mu        sync.Mutex
	scope     sync.WaitGroup
}

// NewScope - concurrency scope builder
func NewScope() (scope *Scope, cancel func()) {
	return WithParent(context.Background())
}

// WithParent - builds scope which is also cancelled with parent context.
// Returned cancel func cancels scope context and waits for all members.
func WithParent(parent context.Context) (scope *Scope, cancel func()) {
	ctx, cancelFunc := context.WithCancel(parent)
	s := &Scope{
		ctx:       ctx,
		ctxCancel: cancelFunc,
	}
	return s,
		func() {
			s.mu.Lock()
			s.ctxCancel()
			s.mu.Unlock()
			s.scope.Wait()
		}
}

// Active - reports whether scope is not cancelled yet.
func (s *Scope) Active() bool {
	return s.ctx.Err() == nil
}

// Go - runs f in new goroutine as scope member.
// Returns false and does not run f if scope is already cancelled.
func (s *Scope) Go(f func(ctx context.Context)) bool {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	s.scope.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.scope.Done()
		f(s.ctx)
	}()
	return true
}
