package daemon

import (
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"
)

func newFileDaemon() *Daemon {
	return &Daemon{
		log:          quietLogger(),
		pendingFiles: make(map[uint32]chan net.Conn),
	}
}

func TestHandleFileConnDeliversToPendingToken(t *testing.T) {
	d := newFileDaemon()
	ch := d.expectFile(7)

	local, remote := net.Pipe()
	defer remote.Close()
	go writeFileHeader(remote, 7)
	go d.handleFileConn(local)

	select {
	case conn := <-ch:
		conn.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("connection not delivered")
	}
}

func TestForgetFileClosesUndeliveredConn(t *testing.T) {
	// The transfer can give up between the listener buffering the connection
	// and anyone receiving it. Retiring the token must close that connection
	// instead of stranding it in the channel.
	d := newFileDaemon()
	ch := d.expectFile(9)

	local, remote := net.Pipe()
	defer remote.Close()
	go writeFileHeader(remote, 9)
	d.handleFileConn(local)

	d.forgetFile(9, ch)

	remote.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err := remote.Read(buf)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatal("buffered connection left open after token retired")
	}
	if !errors.Is(err, io.EOF) {
		t.Fatalf("read = %v, want EOF from closed connection", err)
	}
}

func TestHandleFileConnRejectsRetiredToken(t *testing.T) {
	d := newFileDaemon()
	ch := d.expectFile(11)
	d.forgetFile(11, ch)

	local, remote := net.Pipe()
	defer remote.Close()
	go writeFileHeader(remote, 11)
	d.handleFileConn(local)

	remote.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := remote.Read(buf); !errors.Is(err, io.EOF) {
		t.Fatalf("read = %v, want EOF from closed connection", err)
	}
}
