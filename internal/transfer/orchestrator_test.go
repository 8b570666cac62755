package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuerier struct {
	place   uint32
	err     error
	gotPeer string
	gotPath string
	calls   int
}

func (q *stubQuerier) PlaceInQueue(ctx context.Context, peer, path string) (uint32, error) {
	q.calls++
	q.gotPeer = peer
	q.gotPath = path
	return q.place, q.err
}

func newTestOrchestrator(q QueueQuerier) (*Orchestrator, *Tracker) {
	tr := NewTracker()
	return NewOrchestrator(tr, q, nil), tr
}

func waitForState(t *testing.T, tr *Tracker, dir Direction, peer, fileID string, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		h, err := tr.TryGet(dir, peer, fileID)
		if err != nil {
			return false
		}
		return h.View().State == want
	}, 2*time.Second, 5*time.Millisecond, "transfer never reached %s", want)
}

func TestEnqueueAcceptedOnQueuedBeforeCompletion(t *testing.T) {
	o, tr := newTestOrchestrator(nil)
	release := make(chan struct{})

	res := o.Enqueue(context.Background(), Download, "alice", "song.mp3", 64, func(ctx context.Context, emit EmitFunc) error {
		emit(StateQueued, 0)
		<-release
		emit(StateInProgress, 64)
		return nil
	})

	// Enqueue resolves on the queued signal, not on completion.
	assert.Equal(t, StatusAccepted, res.Status)

	h, err := tr.TryGet(Download, "alice", FileID("song.mp3"))
	require.NoError(t, err)
	assert.Equal(t, StateQueued, h.View().State)

	close(release)
	waitForState(t, tr, Download, "alice", FileID("song.mp3"), StateCompleted)
	assert.Equal(t, uint64(64), h.View().Transferred)
}

func TestEnqueueRejectedBeforeQueued(t *testing.T) {
	o, tr := newTestOrchestrator(nil)

	res := o.Enqueue(context.Background(), Download, "alice", "song.mp3", 0, func(ctx context.Context, emit EmitFunc) error {
		return &RejectionError{Reason: "File not shared."}
	})

	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, "File not shared.", res.Reason)

	// The losing outcome still lands in the tracker, terminally.
	waitForState(t, tr, Download, "alice", FileID("song.mp3"), StateRejected)
}

func TestEnqueueFailedBeforeQueued(t *testing.T) {
	o, tr := newTestOrchestrator(nil)

	res := o.Enqueue(context.Background(), Download, "alice", "song.mp3", 0, func(ctx context.Context, emit EmitFunc) error {
		return errors.New("connection reset")
	})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "connection reset", res.Detail)
	waitForState(t, tr, Download, "alice", FileID("song.mp3"), StateErrored)
}

func TestEnqueueCompletedBeforeQueuedIsAccepted(t *testing.T) {
	o, tr := newTestOrchestrator(nil)

	res := o.Enqueue(context.Background(), Upload, "bob", "tiny.txt", 3, func(ctx context.Context, emit EmitFunc) error {
		emit(StateInProgress, 3)
		return nil
	})

	assert.Equal(t, StatusAccepted, res.Status)
	waitForState(t, tr, Upload, "bob", FileID("tiny.txt"), StateCompleted)
}

func TestEnqueueRegistersBeforeOperationStarts(t *testing.T) {
	o, tr := newTestOrchestrator(nil)

	var seen bool
	o.Enqueue(context.Background(), Download, "alice", "f", 0, func(ctx context.Context, emit EmitFunc) error {
		_, err := tr.TryGet(Download, "alice", FileID("f"))
		seen = err == nil
		return errors.New("stop")
	})

	assert.True(t, seen, "entry must exist before the operation runs")
}

func TestCancelRunningTransfer(t *testing.T) {
	o, tr := newTestOrchestrator(nil)

	res := o.Enqueue(context.Background(), Download, "alice", "song.mp3", 0, func(ctx context.Context, emit EmitFunc) error {
		emit(StateQueued, 0)
		<-ctx.Done()
		return ctx.Err()
	})
	require.Equal(t, StatusAccepted, res.Status)

	require.NoError(t, o.Cancel(Download, "alice", FileID("song.mp3")))
	waitForState(t, tr, Download, "alice", FileID("song.mp3"), StateCancelled)

	// Second cancel is a no-op, not an error.
	require.NoError(t, o.Cancel(Download, "alice", FileID("song.mp3")))

	h, err := tr.TryGet(Download, "alice", FileID("song.mp3"))
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, h.View().State)
}

func TestCancelAfterCompletionIsNoOp(t *testing.T) {
	o, tr := newTestOrchestrator(nil)

	o.Enqueue(context.Background(), Download, "alice", "f", 0, func(ctx context.Context, emit EmitFunc) error {
		emit(StateQueued, 0)
		return nil
	})
	waitForState(t, tr, Download, "alice", FileID("f"), StateCompleted)

	require.NoError(t, o.Cancel(Download, "alice", FileID("f")))

	h, err := tr.TryGet(Download, "alice", FileID("f"))
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, h.View().State)
}

func TestCancelUnknownTransfer(t *testing.T) {
	o, _ := newTestOrchestrator(nil)
	assert.ErrorIs(t, o.Cancel(Download, "nobody", FileID("f")), ErrNotFound)
}

func TestTransferSurvivesCallerContext(t *testing.T) {
	o, tr := newTestOrchestrator(nil)
	callerCtx, callerCancel := context.WithCancel(context.Background())
	release := make(chan struct{})

	res := o.Enqueue(callerCtx, Download, "alice", "f", 0, func(ctx context.Context, emit EmitFunc) error {
		emit(StateQueued, 0)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	require.Equal(t, StatusAccepted, res.Status)

	// Cancelling the caller's context must not cancel the transfer.
	callerCancel()
	close(release)
	waitForState(t, tr, Download, "alice", FileID("f"), StateCompleted)
}

func TestPlaceInQueueUnknownTransferSkipsNetwork(t *testing.T) {
	q := &stubQuerier{}
	o, _ := newTestOrchestrator(q)

	_, err := o.PlaceInQueue(context.Background(), Download, "alice", FileID("f"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, q.calls, "remote must not be asked about an untracked transfer")
}

func TestPlaceInQueueUpdatesEntry(t *testing.T) {
	q := &stubQuerier{place: 7}
	o, tr := newTestOrchestrator(q)

	tr.AddOrUpdate(Event{Direction: Download, Peer: "alice", Path: "music\\song.mp3", State: StateQueued}, nil)

	place, err := o.PlaceInQueue(context.Background(), Download, "alice", FileID("music\\song.mp3"))
	require.NoError(t, err)
	assert.Equal(t, uint32(7), place)
	assert.Equal(t, "alice", q.gotPeer)
	assert.Equal(t, "music\\song.mp3", q.gotPath)

	h, err := tr.TryGet(Download, "alice", FileID("music\\song.mp3"))
	require.NoError(t, err)
	v := h.View()
	assert.True(t, v.HasPlace)
	assert.Equal(t, uint32(7), v.PlaceInQueue)
}

func TestPlaceInQueueQuerierError(t *testing.T) {
	q := &stubQuerier{err: errors.New("peer unreachable")}
	o, tr := newTestOrchestrator(q)

	tr.AddOrUpdate(Event{Direction: Download, Peer: "alice", Path: "f", State: StateQueued}, nil)

	_, err := o.PlaceInQueue(context.Background(), Download, "alice", FileID("f"))
	require.Error(t, err)

	h, _ := tr.TryGet(Download, "alice", FileID("f"))
	assert.False(t, h.View().HasPlace, "failed query must not record a place")
}
