package notifysync

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Session is the consumer surface of one active notification pipeline. It
// exposes the merged feed read-only plus the acknowledge/refresh commands.
// Sessions are created and torn down by the Gate only.
type Session struct {
	store     *Store
	api       FeedAPI
	transport Transport

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	loading bool
	lastErr error
}

func newSession(api FeedAPI, transport Transport, displayCap int) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		store:     NewStore(displayCap),
		api:       api,
		transport: transport,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// start opens the transport, begins consuming pushed events and kicks off
// the initial fetch. Called by the Gate exactly once per session.
func (s *Session) start() {
	s.transport.Open()
	s.wg.Add(1)
	go s.consume()
	s.Refresh()
}

// stop cancels in-flight work, closes the transport and clears the store so
// nothing leaks into a later session. Late responses arriving after stop are
// discarded via the cancelled context.
func (s *Session) stop() {
	s.cancel()
	s.transport.Close()
	s.wg.Wait()
	s.store.Clear()
}

// consume merges pushed events into the store in receipt order.
func (s *Session) consume() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-s.transport.Events():
			if !ok {
				return
			}
			s.store.Merge(ev)
		}
	}
}

// Items returns the merged feed, unread first, newest first.
func (s *Session) Items() []Event {
	return s.store.Items()
}

// UnreadCount returns the derived unread total.
func (s *Session) UnreadCount() int {
	return s.store.UnreadCount()
}

// Status reports the live connection state.
func (s *Session) Status() Status {
	return s.transport.Status()
}

// Loading reports whether an initial fetch or refresh is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the most recent recoverable error (failed fetch or
// acknowledge), or nil. Good state is never dropped because of one.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Refresh re-runs the initial fetch and unions the result into the store.
// A failed refresh surfaces an error but leaves loaded state untouched.
// Refreshing while a fetch is already in flight is a no-op.
func (s *Session) Refresh() {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return
	}
	s.loading = true
	s.lastErr = nil
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		snap, err := s.api.FetchInitial(s.ctx)

		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()

		// A response for a torn-down session is discarded.
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			logrus.WithError(err).Warn("Notification fetch failed")
			s.setErr(err)
			return
		}
		s.store.MergeSnapshot(snap)
	}()
}

// Acknowledge marks one event read. The store is updated immediately; the
// server call runs in the background. A failed call is surfaced but the
// optimistic flip is kept — read state is monotone client intent, and an
// item snapping back to unread would be worse than a lost ack.
func (s *Session) Acknowledge(id string) {
	s.store.MarkRead(id)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.api.Acknowledge(s.ctx, id); err != nil && s.ctx.Err() == nil {
			logrus.WithError(err).WithField("id", id).Warn("Acknowledge failed, keeping optimistic read state")
			s.setErr(err)
		}
	}()
}

// AcknowledgeAll marks everything read, dropping the unread count to zero
// immediately, then confirms with the server. No rollback on failure.
func (s *Session) AcknowledgeAll() {
	s.store.MarkAllRead()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.api.AcknowledgeAll(s.ctx); err != nil && s.ctx.Err() == nil {
			logrus.WithError(err).Warn("Acknowledge-all failed, keeping optimistic read state")
			s.setErr(err)
		}
	}()
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
