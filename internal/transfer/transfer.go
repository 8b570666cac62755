// Package transfer tracks file transfers and drives their lifecycle: a
// concurrently accessible directory of transfer handles keyed by
// (direction, peer, file identity), and an orchestrator that races the
// remote "queued" confirmation against failure.
package transfer

import (
	"crypto/sha1"
	"encoding/hex"
	"sync"
)

// Direction distinguishes downloads from uploads.
type Direction uint8

const (
	Download Direction = iota
	Upload
)

func (d Direction) String() string {
	switch d {
	case Download:
		return "download"
	case Upload:
		return "upload"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of a transfer.
type State uint8

const (
	StateRequested State = iota
	StateQueued
	StateInitializing
	StateInProgress
	StateCompleted
	StateCancelled
	StateRejected
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateQueued:
		return "queued"
	case StateInitializing:
		return "initializing"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateRejected:
		return "rejected"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen from s.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateRejected, StateErrored:
		return true
	default:
		return false
	}
}

// FileID returns the stable identity of a remote file path: the SHA-1 hex
// digest of the raw path string. Remote paths may contain characters unsafe
// for use as lookup keys, so the digest stands in for the path everywhere a
// transfer is addressed.
func FileID(path string) string {
	sum := sha1.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}

// Key uniquely identifies a tracked transfer.
type Key struct {
	Direction Direction
	Peer      string
	FileID    string
}

// Event is one state or progress change produced for a transfer. Events are
// the only way transfer fields are mutated.
type Event struct {
	Direction   Direction
	Peer        string
	Path        string
	Size        uint64
	State       State
	Transferred uint64
}

func (e Event) Key() Key {
	return Key{Direction: e.Direction, Peer: e.Peer, FileID: FileID(e.Path)}
}

// View is a point-in-time copy of a transfer, safe to hand to callers and
// serialize.
type View struct {
	Direction    Direction `json:"direction"`
	Peer         string    `json:"peer"`
	Path         string    `json:"path"`
	FileID       string    `json:"file_id"`
	Size         uint64    `json:"size"`
	Transferred  uint64    `json:"transferred"`
	State        State     `json:"state"`
	PlaceInQueue uint32    `json:"place_in_queue"`
	HasPlace     bool      `json:"has_place"`
}

// Transfer is one tracked transfer. All fields are guarded by mu and
// mutated only through events and the place-in-queue update.
type Transfer struct {
	mu          sync.Mutex
	direction   Direction
	peer        string
	path        string
	fileID      string
	size        uint64
	transferred uint64
	state       State
	place       uint32
	hasPlace    bool
}

func newTransfer(ev Event) *Transfer {
	return &Transfer{
		direction:   ev.Direction,
		peer:        ev.Peer,
		path:        ev.Path,
		fileID:      FileID(ev.Path),
		size:        ev.Size,
		transferred: ev.Transferred,
		state:       ev.State,
	}
}

// apply folds an event into the transfer. Terminal states are frozen: a
// late event from the losing side of the enqueue race cannot overwrite the
// recorded outcome. Transferred bytes never regress.
func (t *Transfer) apply(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Terminal() {
		return
	}
	t.state = ev.State
	if ev.Size > 0 {
		t.size = ev.Size
	}
	if ev.Transferred > t.transferred {
		t.transferred = ev.Transferred
	}
}

func (t *Transfer) setPlace(place uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.place = place
	t.hasPlace = true
}

// View returns a copy of the transfer's current state.
func (t *Transfer) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return View{
		Direction:    t.direction,
		Peer:         t.peer,
		Path:         t.path,
		FileID:       t.fileID,
		Size:         t.size,
		Transferred:  t.transferred,
		State:        t.state,
		PlaceInQueue: t.place,
		HasPlace:     t.hasPlace,
	}
}
