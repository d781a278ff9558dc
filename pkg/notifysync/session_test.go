package notifysync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport feeds synthetic events into the pipeline without a socket.
type fakeTransport struct {
	events chan Event

	mu     sync.Mutex
	status Status
	opens  int
	closes int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events: make(chan Event, 16),
		status: StatusDisconnected,
	}
}

func (f *fakeTransport) Open() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	f.status = StatusConnected
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closes == 0 {
		close(f.events)
	}
	f.closes++
	f.status = StatusDisconnected
}

func (f *fakeTransport) Events() <-chan Event { return f.events }

func (f *fakeTransport) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeTransport) push(ev Event) { f.events <- ev }

// fakeAPI scripts fetch and acknowledge outcomes.
type fakeAPI struct {
	mu        sync.Mutex
	snapshot  *Snapshot
	fetchErr  error
	ackErr    error
	ackAllErr error
	acked     []string
	ackAlls   int
	fetches   int
	// fetchGate, when set, delays FetchInitial until released or the
	// context dies. Lets tests race a fetch against teardown.
	fetchGate chan struct{}
}

func (f *fakeAPI) FetchInitial(ctx context.Context) (*Snapshot, error) {
	f.mu.Lock()
	gate := f.fetchGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			// Simulate the response still arriving after cancellation: the
			// caller decides whether to apply it.
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.snapshot, nil
}

func (f *fakeAPI) Acknowledge(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, id)
	return f.ackErr
}

func (f *fakeAPI) AcknowledgeAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ackAlls++
	return f.ackAllErr
}

func (f *fakeAPI) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

// waitFor polls until the condition holds or the test times out. The
// pipeline is asynchronous by design, so assertions wait for convergence.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not reached in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func startTestSession(t *testing.T, api *fakeAPI, tr *fakeTransport) *Session {
	t.Helper()
	sess := newSession(api, tr, 0)
	sess.start()
	t.Cleanup(sess.stop)
	return sess
}

func TestSessionFetchAndStreamMerge(t *testing.T) {
	now := time.Now()
	api := &fakeAPI{snapshot: &Snapshot{
		Items:       []Event{makeEvent("a", false, now)},
		UnreadCount: 1,
	}}
	tr := newFakeTransport()
	sess := startTestSession(t, api, tr)

	waitFor(t, func() bool { return sess.UnreadCount() == 1 })

	tr.push(makeEvent("b", false, now.Add(time.Second)))
	waitFor(t, func() bool { return sess.UnreadCount() == 2 })

	items := sess.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].ID)
	assert.Equal(t, "a", items[1].ID)
	assert.Equal(t, StatusConnected, sess.Status())
	assert.NoError(t, sess.Err())
}

func TestSessionOptimisticAcknowledge(t *testing.T) {
	now := time.Now()
	api := &fakeAPI{snapshot: &Snapshot{
		Items:       []Event{makeEvent("a", false, now), makeEvent("b", false, now)},
		UnreadCount: 2,
	}}
	tr := newFakeTransport()
	sess := startTestSession(t, api, tr)
	waitFor(t, func() bool { return sess.UnreadCount() == 2 })

	// The count drops before the server ever answers.
	sess.Acknowledge("a")
	assert.Equal(t, 1, sess.UnreadCount())

	// A concurrent stream copy of the same event, read on another device,
	// must not disturb anything.
	tr.push(makeEvent("a", true, now))
	waitFor(t, func() bool { return len(api.ackedIDs()) == 1 })
	assert.Equal(t, 1, sess.UnreadCount())
}

func TestSessionAcknowledgeFailureKeepsOptimisticState(t *testing.T) {
	now := time.Now()
	api := &fakeAPI{
		snapshot: &Snapshot{
			Items:       []Event{makeEvent("a", false, now), makeEvent("b", false, now)},
			UnreadCount: 2,
		},
		ackAllErr: errors.New("boom"),
	}
	tr := newFakeTransport()
	sess := startTestSession(t, api, tr)
	waitFor(t, func() bool { return sess.UnreadCount() == 2 })

	sess.AcknowledgeAll()
	assert.Equal(t, 0, sess.UnreadCount())

	// The failure surfaces, but nothing rolls back.
	waitFor(t, func() bool { return sess.Err() != nil })
	assert.Equal(t, 0, sess.UnreadCount())
	for _, ev := range sess.Items() {
		assert.True(t, ev.Read)
	}
}

func TestSessionRefreshFailureKeepsData(t *testing.T) {
	now := time.Now()
	api := &fakeAPI{snapshot: &Snapshot{
		Items:       []Event{makeEvent("a", false, now)},
		UnreadCount: 1,
	}}
	tr := newFakeTransport()
	sess := startTestSession(t, api, tr)
	waitFor(t, func() bool { return sess.UnreadCount() == 1 })

	api.mu.Lock()
	api.fetchErr = errors.New("server down")
	api.mu.Unlock()

	sess.Refresh()
	waitFor(t, func() bool { return sess.Err() != nil })
	assert.False(t, sess.Loading())

	// Prior good state survives the failed refresh.
	assert.Equal(t, 1, sess.UnreadCount())
	require.Len(t, sess.Items(), 1)
}

func TestSessionTeardownDiscardsLateFetch(t *testing.T) {
	now := time.Now()
	api := &fakeAPI{
		snapshot: &Snapshot{
			Items:       []Event{makeEvent("a", false, now)},
			UnreadCount: 1,
		},
		fetchGate: make(chan struct{}),
	}
	tr := newFakeTransport()
	sess := newSession(api, tr, 0)
	sess.start()

	// Tear down while the fetch is still in flight. stop() waits for the
	// late response and it must be discarded, not applied.
	sess.stop()

	assert.Zero(t, sess.UnreadCount())
	assert.Empty(t, sess.Items())
}

func TestSessionRefreshCoalesces(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeAPI{
		snapshot:  &Snapshot{},
		fetchGate: gate,
	}
	tr := newFakeTransport()
	sess := startTestSession(t, api, tr)

	// The initial fetch is still blocked; further refreshes are no-ops.
	sess.Refresh()
	sess.Refresh()
	close(gate)

	waitFor(t, func() bool { return !sess.Loading() })
	api.mu.Lock()
	fetches := api.fetches
	api.mu.Unlock()
	assert.Equal(t, 1, fetches)
}
