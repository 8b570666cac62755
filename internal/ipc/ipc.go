// Package ipc defines the envelope spoken between the CLI and the daemon
// over the unix socket: length-prefixed CBOR frames.
package ipc

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/soulsift/soulsift/internal/transfer"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("ipc: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// maxFrameSize bounds a single IPC frame.
const maxFrameSize = 1 << 24

type Command string

const (
	CmdDownload Command = "download"
	CmdCancel   Command = "cancel"
	CmdQueue    Command = "queue"
	CmdStatus   Command = "status"
	CmdSearch   Command = "search"
	CmdJoin     Command = "join"
	CmdHistory  Command = "history"
)

// Request is one CLI command sent to the daemon.
type Request struct {
	Command Command `cbor:"command"`
	Peer    string  `cbor:"peer,omitempty"`
	Path    string  `cbor:"path,omitempty"`
	Size    uint64  `cbor:"size,omitempty"`
	Query   string  `cbor:"query,omitempty"`
	Room    string  `cbor:"room,omitempty"`
}

// HistoryEntry is one completed download in the daemon's history.
type HistoryEntry struct {
	Peer        string `cbor:"peer"`
	Path        string `cbor:"path"`
	Size        int64  `cbor:"size"`
	CompletedAt int64  `cbor:"completed_at"`
}

// Response is the daemon's answer to a Request.
type Response struct {
	OK    bool   `cbor:"ok"`
	Error string `cbor:"error,omitempty"`

	// Download outcome.
	Status string `cbor:"status,omitempty"`
	Reason string `cbor:"reason,omitempty"`
	Detail string `cbor:"detail,omitempty"`

	// Queue position.
	Place    uint32 `cbor:"place,omitempty"`
	HasPlace bool   `cbor:"has_place,omitempty"`

	// Status listing: peer -> file id -> view.
	Transfers map[string]map[string]transfer.View `cbor:"transfers,omitempty"`

	// Join result.
	RoomUsers []string `cbor:"room_users,omitempty"`

	// History listing.
	History []HistoryEntry `cbor:"history,omitempty"`

	// Free-form confirmation (search token etc).
	Message string `cbor:"message,omitempty"`
}

// WriteRequest frames and writes one request.
func WriteRequest(w io.Writer, req *Request) error {
	data, err := cborEncMode.Marshal(req)
	if err != nil {
		return fmt.Errorf("ipc: marshal request: %w", err)
	}
	return writeFrame(w, data)
}

// ReadRequest reads and decodes one request frame.
func ReadRequest(r io.Reader) (*Request, error) {
	data, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	var req Request
	if err := cbor.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("ipc: unmarshal request: %w", err)
	}
	return &req, nil
}

// WriteResponse frames and writes one response.
func WriteResponse(w io.Writer, resp *Response) error {
	data, err := cborEncMode.Marshal(resp)
	if err != nil {
		return fmt.Errorf("ipc: marshal response: %w", err)
	}
	return writeFrame(w, data)
}

// ReadResponse reads and decodes one response frame.
func ReadResponse(r io.Reader) (*Response, error) {
	data, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := cbor.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("ipc: unmarshal response: %w", err)
	}
	return &resp, nil
}

func writeFrame(w io.Writer, data []byte) error {
	frame := binary.LittleEndian.AppendUint32(make([]byte, 0, 4+len(data)), uint32(len(data)))
	frame = append(frame, data...)
	_, err := w.Write(frame)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(header)
	if length > maxFrameSize {
		return nil, fmt.Errorf("ipc: frame length %d exceeds limit", length)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
