package chathub

import (
	"context"
	"sync"

	"github.com/BaSui01/edgechat/types"
)

// Update is one item of an answer stream.
type Update struct {
	// Final marks the terminal update. Raw then holds the final frame,
	// salvaged if the server degraded the answer.
	Final bool
	// Text is the accumulated answer with links.
	Text string
	// Stripped is the accumulated answer without links.
	Stripped string
	// Raw is set in raw mode and on the final update.
	Raw Frame
	// Err is set on the last update of a failed stream.
	Err error
}

// Stream is the handle of one running ask. Updates is single pass; it is
// closed after the final update or after one update carrying Err.
type Stream struct {
	updates chan Update
	cancel  context.CancelFunc
	done    chan struct{}

	mu  sync.Mutex
	err error
}

func newStream(cancel context.CancelFunc) *Stream {
	return &Stream{
		updates: make(chan Update),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Updates returns the update channel.
func (s *Stream) Updates() <-chan Update {
	return s.updates
}

// Done is closed once the session released its resources.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err returns the terminal error after Updates is closed. It is nil while
// the stream runs and after a successful final update.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close cancels the stream and waits until its resources are released.
// It is safe to call more than once and after the stream finished.
func (s *Stream) Close() error {
	s.cancel()
	<-s.done
	return nil
}

// Final drains the stream and returns the final frame.
func (s *Stream) Final(ctx context.Context) (Frame, error) {
	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return nil, types.NewError(types.ErrCancelled, "waiting for final frame").WithCause(ctx.Err())
		case u, ok := <-s.updates:
			if !ok {
				if err := s.Err(); err != nil {
					return nil, err
				}
				return nil, types.NewError(types.ErrNoServerResponse, "stream ended without a final frame")
			}
			if u.Err != nil {
				return nil, u.Err
			}
			if u.Final {
				return u.Raw, nil
			}
		}
	}
}

// run drives sess and publishes its outcome. The terminal error is offered
// to the reader only while ctx is live.
func (s *Stream) run(ctx context.Context, sess *session, finished func()) {
	defer close(s.done)
	defer finished()

	err := sess.run(ctx)

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		select {
		case s.updates <- Update{Err: err}:
		case <-ctx.Done():
		}
	}
	close(s.updates)
	s.cancel()
}
