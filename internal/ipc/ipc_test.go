package ipc

import (
	"bytes"
	"testing"

	"github.com/soulsift/soulsift/internal/transfer"
)

func TestRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	want := &Request{
		Command: CmdDownload,
		Peer:    "alice",
		Path:    "music\\song.mp3",
		Size:    4096,
	}
	if err := WriteRequest(&buf, want); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}

	got, err := ReadRequest(&buf)
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if *got != *want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	want := &Response{
		OK:     true,
		Status: "rejected",
		Reason: "File not shared.",
		Transfers: map[string]map[string]transfer.View{
			"alice": {
				"abc": {Peer: "alice", Path: "f", State: transfer.StateQueued},
			},
		},
	}
	if err := WriteResponse(&buf, want); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}

	got, err := ReadResponse(&buf)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if !got.OK || got.Status != "rejected" || got.Reason != "File not shared." {
		t.Errorf("scalar fields mismatch: %+v", got)
	}
	v := got.Transfers["alice"]["abc"]
	if v.Peer != "alice" || v.State != transfer.StateQueued {
		t.Errorf("nested view mismatch: %+v", v)
	}
}

func TestReadRequestTruncatedFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRequest(&buf, &Request{Command: CmdStatus}); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	if _, err := ReadRequest(bytes.NewReader(data[:len(data)-1])); err == nil {
		t.Fatal("expected error for truncated frame")
	}
}

func TestReadFrameLengthLimit(t *testing.T) {
	frame := []byte{0xff, 0xff, 0xff, 0xff}
	if _, err := ReadResponse(bytes.NewReader(frame)); err == nil {
		t.Fatal("expected error for oversized frame length")
	}
}
