// Package browser provides a shared headless browser for pages that only
// render behind JavaScript or bot checks.
package browser

import (
	"context"
	"io"
	"sync"
)

// Pool shares one lazily opened session among concurrent users. The session
// is opened by the first Acquire and closed when the last holder releases
// it; refs never goes negative.
type Pool[T io.Closer] struct {
	open func(ctx context.Context) (T, error)

	mu      sync.Mutex
	session T
	live    bool
	refs    int
}

func NewPool[T io.Closer](open func(ctx context.Context) (T, error)) *Pool[T] {
	return &Pool[T]{open: open}
}

// Acquire returns the shared session and a release func. Release is safe to
// call more than once and is returned even on error, so callers can always
// defer it.
func (p *Pool[T]) Acquire(ctx context.Context) (T, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.live {
		s, err := p.open(ctx)
		if err != nil {
			var zero T
			return zero, func() {}, err
		}
		p.session, p.live = s, true
	}
	p.refs++
	s := p.session
	return s, sync.OnceFunc(p.release), nil
}

func (p *Pool[T]) release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refs--
	if p.refs > 0 {
		return
	}
	p.refs = 0
	if p.live {
		_ = p.session.Close()
		var zero T
		p.session, p.live = zero, false
	}
}

// With runs fn with the shared session held.
func (p *Pool[T]) With(ctx context.Context, fn func(T) error) error {
	s, release, err := p.Acquire(ctx)
	defer release()
	if err != nil {
		return err
	}
	return fn(s)
}

// Refs returns the number of outstanding holders.
func (p *Pool[T]) Refs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refs
}
