package bundler

import (
	"context"
	"sync"

	lberrors "github.com/matzehuels/livebundle/pkg/errors"
)

// InitState is the engine readiness state.
type InitState int

const (
	Uninitialized InitState = iota
	Initializing
	Ready
)

// String returns the state name.
func (s InitState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s InitState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// pendingInit is the outcome of one initialization attempt. err is written
// before done is closed.
type pendingInit struct {
	done chan struct{}
	err  error
}

// barrier runs init at most once at a time and at most once successfully.
type barrier struct {
	init func(context.Context) error

	mu      sync.Mutex
	state   InitState
	pending *pendingInit
}

func newBarrier(init func(context.Context) error) *barrier {
	return &barrier{init: init}
}

func (b *barrier) State() InitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Wait returns once the engine is ready, or with the error of the attempt
// the caller started or joined. A caller whose ctx ends while another
// goroutine initializes returns ctx's error; the attempt continues.
func (b *barrier) Wait(ctx context.Context) error {
	b.mu.Lock()
	switch b.state {
	case Ready:
		b.mu.Unlock()
		return nil
	case Initializing:
		p := b.pending
		b.mu.Unlock()
		select {
		case <-p.done:
			return p.err
		case <-ctx.Done():
			return lberrors.Wrap(lberrors.ErrCodeEngineInit, ctx.Err(), "waiting for engine")
		}
	}

	p := &pendingInit{done: make(chan struct{})}
	b.state = Initializing
	b.pending = p
	b.mu.Unlock()

	err := b.run(ctx)

	b.mu.Lock()
	if err != nil {
		b.state = Uninitialized
	} else {
		b.state = Ready
	}
	b.pending = nil
	p.err = err
	close(p.done)
	b.mu.Unlock()
	return err
}

func (b *barrier) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = lberrors.New(lberrors.ErrCodeEngineInit, "engine init panicked: %v", r)
		}
	}()
	if err := b.init(ctx); err != nil {
		if lberrors.GetCode(err) != "" {
			return err
		}
		return lberrors.Wrap(lberrors.ErrCodeEngineInit, err, "engine init")
	}
	return nil
}
