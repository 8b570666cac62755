package transfer

import (
	"context"
	"sync"
)

// Handle pairs a tracked transfer with its cancellation control. The tracker
// owns the handle for the transfer's tracked lifetime; callers only ever
// observe the transfer and signal cancellation, never replace the control.
type Handle struct {
	transfer *Transfer
	cancel   context.CancelFunc
}

// View returns a copy of the underlying transfer's state.
func (h *Handle) View() View {
	return h.transfer.View()
}

// Cancel signals the transfer's cancellation handle. Cancelling a transfer
// that already reached a terminal state is a no-op, as is cancelling twice.
func (h *Handle) Cancel() {
	if h.transfer.View().State.Terminal() {
		return
	}
	if h.cancel != nil {
		h.cancel()
	}
}

// Tracker is the in-memory directory of active and finished transfers,
// keyed by (direction, peer, file identity). Entries are removed only on
// explicit request; finished transfers stay queryable until evicted.
type Tracker struct {
	mu      sync.RWMutex
	entries map[Key]*Handle
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[Key]*Handle)}
}

// AddOrUpdate upserts the transfer addressed by the event's key. An absent
// entry is created with the given cancellation handle; an existing entry
// has the event folded in and keeps its original handle — the first writer
// establishes cancellation ownership.
func (t *Tracker) AddOrUpdate(ev Event, cancel context.CancelFunc) *Handle {
	key := ev.Key()

	t.mu.Lock()
	h, ok := t.entries[key]
	if !ok {
		h = &Handle{transfer: newTransfer(ev), cancel: cancel}
		t.entries[key] = h
		t.mu.Unlock()
		return h
	}
	t.mu.Unlock()

	h.transfer.apply(ev)
	return h
}

// TryGet looks up a tracked transfer.
func (t *Tracker) TryGet(dir Direction, peer, fileID string) (*Handle, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.entries[Key{Direction: dir, Peer: peer, FileID: fileID}]
	if !ok {
		return nil, ErrNotFound
	}
	return h, nil
}

// TryRemove evicts a transfer from the directory.
func (t *Tracker) TryRemove(dir Direction, peer, fileID string) error {
	key := Key{Direction: dir, Peer: peer, FileID: fileID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[key]; !ok {
		return ErrNotFound
	}
	delete(t.entries, key)
	return nil
}

// Downloads returns views of all tracked downloads.
func (t *Tracker) Downloads() []View {
	return t.filter(func(v View) bool { return v.Direction == Download })
}

// Uploads returns views of all tracked uploads.
func (t *Tracker) Uploads() []View {
	return t.filter(func(v View) bool { return v.Direction == Upload })
}

// ByPeer returns views of all transfers with the given peer.
func (t *Tracker) ByPeer(peer string) []View {
	return t.filter(func(v View) bool { return v.Peer == peer })
}

// Snapshot projects the directory to peer -> file identity -> view. The
// copy is taken without holding the directory lock across entry reads;
// concurrent upserts are not blocked and the result reflects state at some
// point during the call, not an atomic cut.
func (t *Tracker) Snapshot() map[string]map[string]View {
	handles := t.handles()

	out := make(map[string]map[string]View)
	for _, h := range handles {
		v := h.View()
		byFile, ok := out[v.Peer]
		if !ok {
			byFile = make(map[string]View)
			out[v.Peer] = byFile
		}
		byFile[v.FileID] = v
	}
	return out
}

func (t *Tracker) filter(keep func(View) bool) []View {
	handles := t.handles()

	var out []View
	for _, h := range handles {
		if v := h.View(); keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func (t *Tracker) handles() []*Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Handle, 0, len(t.entries))
	for _, h := range t.entries {
		out = append(out, h)
	}
	return out
}
