package transfer

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// EmitFunc reports a state or progress change for the running transfer.
// Events for one transfer must be emitted in the order they happen.
type EmitFunc func(state State, transferred uint64)

// TransferFunc is the underlying transfer operation: it queues the file with
// the remote side, streams bytes, and emits events along the way. It must
// observe ctx at its suspension points and return ctx.Err() when cancelled,
// a *RejectionError when the remote declines, or any other error on failure.
type TransferFunc func(ctx context.Context, emit EmitFunc) error

// Status classifies the outcome of the enqueue race.
type Status uint8

const (
	// StatusAccepted means the transfer was queued (or already finished);
	// it continues in the background, observable via the tracker.
	StatusAccepted Status = iota
	// StatusRejected means the remote declined before the transfer was
	// ever queued.
	StatusRejected
	// StatusFailed means the operation failed before being queued.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is what the caller of Enqueue gets once the race resolves.
type Result struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// QueueQuerier performs the on-demand place-in-queue exchange with the
// remote peer. Implementations do network I/O; the orchestrator never calls
// it while holding any tracker lock.
type QueueQuerier interface {
	PlaceInQueue(ctx context.Context, peer, path string) (uint32, error)
}

// Orchestrator drives transfer lifecycles. All observable state flows
// through the tracker; the orchestrator never mutates a transfer directly.
type Orchestrator struct {
	tracker *Tracker
	queue   QueueQuerier
	log     *logrus.Logger
}

func NewOrchestrator(tracker *Tracker, queue QueueQuerier, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.New()
	}
	return &Orchestrator{tracker: tracker, queue: queue, log: log}
}

// Enqueue issues a transfer and waits for the first of two signals: the
// transfer reaching Queued/Initializing, or the operation failing. The
// transfer is registered with the tracker before the operation starts, so a
// cancellation racing the request always finds its entry. Whichever signal
// loses the race still lands in the tracker; failures after acceptance
// surface only as tracked state, never through a return value.
func (o *Orchestrator) Enqueue(ctx context.Context, dir Direction, peer, path string, size uint64, op TransferFunc) Result {
	opCtx, cancel := context.WithCancel(context.Background())

	o.tracker.AddOrUpdate(Event{
		Direction: dir,
		Peer:      peer,
		Path:      path,
		Size:      size,
		State:     StateRequested,
	}, cancel)

	o.log.Debugf("requested %s of %q from %s", dir, path, peer)

	queued := make(chan struct{})
	var once sync.Once

	emit := func(state State, transferred uint64) {
		o.tracker.AddOrUpdate(Event{
			Direction:   dir,
			Peer:        peer,
			Path:        path,
			Size:        size,
			State:       state,
			Transferred: transferred,
		}, cancel)
		if state == StateQueued || state == StateInitializing {
			once.Do(func() { close(queued) })
		}
	}

	done := make(chan error, 1)
	go func() {
		err := op(opCtx, emit)
		emit(o.terminalState(err), 0)
		if err != nil {
			o.log.Debugf("%s of %q from %s ended: %v", dir, path, peer, err)
		}
		done <- err
	}()

	select {
	case <-queued:
		return Result{Status: StatusAccepted}
	case err := <-done:
		if err == nil {
			// Finished before ever reporting queued; it is done either way.
			return Result{Status: StatusAccepted}
		}
		var rej *RejectionError
		if errors.As(err, &rej) {
			return Result{Status: StatusRejected, Reason: rej.Reason}
		}
		return Result{Status: StatusFailed, Detail: err.Error()}
	case <-ctx.Done():
		return Result{Status: StatusFailed, Detail: ctx.Err().Error()}
	}
}

func (o *Orchestrator) terminalState(err error) State {
	switch {
	case err == nil:
		return StateCompleted
	case errors.Is(err, context.Canceled):
		return StateCancelled
	default:
		var rej *RejectionError
		if errors.As(err, &rej) {
			return StateRejected
		}
		return StateErrored
	}
}

// Cancel signals the tracked transfer's cancellation handle. Idempotent;
// returns ErrNotFound when the transfer is not tracked.
func (o *Orchestrator) Cancel(dir Direction, peer, fileID string) error {
	h, err := o.tracker.TryGet(dir, peer, fileID)
	if err != nil {
		return err
	}
	h.Cancel()
	return nil
}

// PlaceInQueue asks the remote side where a queued transfer sits and
// records the answer on the tracked entry. The network round trip happens
// with no directory lock held; only the single entry is updated. Fails with
// ErrNotFound when the transfer is not tracked, regardless of whether the
// remote would answer.
func (o *Orchestrator) PlaceInQueue(ctx context.Context, dir Direction, peer, fileID string) (uint32, error) {
	h, err := o.tracker.TryGet(dir, peer, fileID)
	if err != nil {
		return 0, err
	}

	place, err := o.queue.PlaceInQueue(ctx, peer, h.View().Path)
	if err != nil {
		return 0, err
	}

	h.transfer.setPlace(place)
	return place, nil
}
