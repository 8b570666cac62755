package daemon

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/soulsift/soulsift/internal/protocol"
	"github.com/soulsift/soulsift/internal/transport"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// newServerPair returns a session under test and the remote end it talks to.
func newServerPair(t *testing.T) (*ServerSession, *transport.Conn) {
	t.Helper()
	a, b := net.Pipe()
	client := transport.NewConn(a, quietLogger())
	remote := transport.NewConn(b, quietLogger())
	s := NewServerSession(client, "alice", quietLogger())
	t.Cleanup(func() {
		s.Close()
		remote.Close()
	})
	return s, remote
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestServerSessionLoginSuccess(t *testing.T) {
	s, remote := newServerPair(t)

	go func() {
		msg := <-remote.Inbound()
		if msg.Code != uint32(protocol.ServerLogin) {
			t.Errorf("expected login request, got code %d", msg.Code)
			return
		}
		b := protocol.NewBuilder()
		b.WriteBool(true)
		b.WriteString("Welcome to the network")
		b.WriteUint32(0x7f000001)
		remote.WriteMessage(b.Message(uint32(protocol.ServerLogin)))
	}()

	resp, err := s.Login(testCtx(t), "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.Greeting != "Welcome to the network" {
		t.Errorf("greeting = %q", resp.Greeting)
	}
	if got := resp.OwnIP.String(); got != "127.0.0.1" {
		t.Errorf("own ip = %s", got)
	}
}

func TestServerSessionLoginRefused(t *testing.T) {
	s, remote := newServerPair(t)

	go func() {
		<-remote.Inbound()
		b := protocol.NewBuilder()
		b.WriteBool(false)
		b.WriteString("INVALIDPASS")
		remote.WriteMessage(b.Message(uint32(protocol.ServerLogin)))
	}()

	_, err := s.Login(testCtx(t), "wrong")
	if err == nil {
		t.Fatal("expected login error")
	}
	if !strings.Contains(err.Error(), "INVALIDPASS") {
		t.Errorf("error %q does not carry the server reason", err)
	}
}

func TestServerSessionPeerAddress(t *testing.T) {
	s, remote := newServerPair(t)

	go func() {
		msg := <-remote.Inbound()
		if msg.Code != uint32(protocol.ServerGetPeerAddress) {
			t.Errorf("expected peer address request, got code %d", msg.Code)
			return
		}
		r := protocol.NewReader(msg.Payload)
		username, _ := r.ReadString()

		b := protocol.NewBuilder()
		b.WriteString(username)
		b.WriteUint32(0x0a000002)
		b.WriteUint32(2234)
		remote.WriteMessage(b.Message(uint32(protocol.ServerGetPeerAddress)))
	}()

	resp, err := s.PeerAddress(testCtx(t), "bob")
	if err != nil {
		t.Fatalf("PeerAddress: %v", err)
	}
	if resp.Username != "bob" {
		t.Errorf("username = %q", resp.Username)
	}
	if resp.IP.String() != "10.0.0.2" || resp.Port != 2234 {
		t.Errorf("address = %s:%d", resp.IP, resp.Port)
	}
}

func joinPayload(room string, users []string) *protocol.Message {
	b := protocol.NewBuilder()
	b.WriteString(room)
	b.WriteUint32(uint32(len(users)))
	for _, u := range users {
		b.WriteString(u)
	}
	b.WriteUint32(uint32(len(users)))
	for range users {
		b.WriteUint32(uint32(protocol.StatusOnline))
	}
	b.WriteUint32(uint32(len(users)))
	for range users {
		b.WriteUint32(100)
		b.WriteUint64(5)
		b.WriteUint32(10)
		b.WriteUint32(2)
	}
	b.WriteUint32(uint32(len(users)))
	for range users {
		b.WriteUint32(1)
	}
	b.WriteUint32(uint32(len(users)))
	for range users {
		b.WriteString("NL")
	}
	return b.Message(uint32(protocol.ServerJoinRoom))
}

func TestServerSessionJoinRoomFiltersOtherRooms(t *testing.T) {
	s, remote := newServerPair(t)

	go func() {
		<-remote.Inbound()
		// An unrelated join lands first; the session must skip it.
		remote.WriteMessage(joinPayload("other room", nil))
		remote.WriteMessage(joinPayload("indie", []string{"bob", "carol"}))
	}()

	resp, err := s.JoinRoom(testCtx(t), "indie")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if resp.Room != "indie" {
		t.Errorf("room = %q", resp.Room)
	}
	if len(resp.Users) != 2 || resp.Users[0].Username != "bob" {
		t.Errorf("users = %+v", resp.Users)
	}
}

func TestServerSessionUnconsumedJoinsDoNotStallRouting(t *testing.T) {
	s, remote := newServerPair(t)

	// More join responses than the join channel holds, none consumed. The
	// listen loop must shed the surplus and keep routing other messages.
	for i := 0; i < 12; i++ {
		if err := remote.WriteMessage(joinPayload("busy", nil)); err != nil {
			t.Fatalf("write join %d: %v", i, err)
		}
	}
	req := protocol.ConnectToPeer{Token: 3, Username: "bob", Type: "P"}
	if err := remote.WriteMessage(req.Encode()); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case m := <-s.ConnectRequests:
		if m.Username != "bob" || m.Token != 3 {
			t.Errorf("connect request = %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("routing stalled behind unconsumed join responses")
	}
}

func TestServerSessionRoutesConnectRequests(t *testing.T) {
	s, remote := newServerPair(t)

	req := protocol.ConnectToPeer{Token: 9, Username: "bob", Type: "P"}
	if err := remote.WriteMessage(req.Encode()); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case m := <-s.ConnectRequests:
		if m.Username != "bob" || m.Token != 9 {
			t.Errorf("connect request = %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connect request never routed")
	}
}

func TestServerSessionDropsMalformedMessage(t *testing.T) {
	s, remote := newServerPair(t)

	// Truncated join payload, then a healthy connect request: the listen
	// loop must survive the bad frame.
	remote.WriteMessage(&protocol.Message{Code: uint32(protocol.ServerJoinRoom), Payload: []byte{1, 2}})
	req := protocol.ConnectToPeer{Token: 1, Username: "bob", Type: "P"}
	remote.WriteMessage(req.Encode())

	select {
	case m := <-s.ConnectRequests:
		if m.Username != "bob" {
			t.Errorf("connect request = %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session stopped processing after malformed message")
	}
}
