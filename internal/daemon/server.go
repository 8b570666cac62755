package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/soulsift/soulsift/internal/protocol"
	"github.com/soulsift/soulsift/internal/transport"
)

// ServerSession is the logged-in connection to the central server. Inbound
// messages are decoded by a background loop and routed to per-kind channels;
// request helpers write a message and wait on the matching channel.
type ServerSession struct {
	conn     *transport.Conn
	log      *logrus.Logger
	username string

	mu           sync.Mutex
	pendingAddrs map[string]chan *protocol.PeerAddressResponse

	loginCh    chan *protocol.LoginResponse
	joinCh     chan *protocol.JoinRoomResponse
	leaveCh    chan *protocol.LeaveRoomResponse
	roomListCh chan *protocol.RoomListResponse

	// RoomMessages carries inbound chat lines; ConnectRequests carries the
	// server's connect-to-peer instructions. Both are consumed by the daemon.
	RoomMessages    chan *protocol.RoomMessage
	ConnectRequests chan *protocol.ConnectToPeer
}

func NewServerSession(conn *transport.Conn, username string, log *logrus.Logger) *ServerSession {
	s := &ServerSession{
		conn:            conn,
		log:             log,
		username:        username,
		pendingAddrs:    make(map[string]chan *protocol.PeerAddressResponse),
		loginCh:         make(chan *protocol.LoginResponse, 1),
		joinCh:          make(chan *protocol.JoinRoomResponse, 8),
		leaveCh:         make(chan *protocol.LeaveRoomResponse, 8),
		roomListCh:      make(chan *protocol.RoomListResponse, 1),
		RoomMessages:    make(chan *protocol.RoomMessage, 100),
		ConnectRequests: make(chan *protocol.ConnectToPeer, 100),
	}
	go s.listen()
	return s
}

func (s *ServerSession) listen() {
	for msg := range s.conn.Inbound() {
		decoded, err := protocol.DecodeServer(msg)
		if err != nil {
			s.log.Debugf("dropping server message %d: %v", msg.Code, err)
			continue
		}

		switch m := decoded.(type) {
		case *protocol.LoginResponse:
			select {
			case s.loginCh <- m:
			default:
			}
		case *protocol.JoinRoomResponse:
			select {
			case s.joinCh <- m:
			default:
				s.log.Debugf("join response for %q dropped, channel full", m.Room)
			}
		case *protocol.LeaveRoomResponse:
			select {
			case s.leaveCh <- m:
			default:
				s.log.Debugf("leave response for %q dropped, channel full", m.Room)
			}
		case *protocol.RoomListResponse:
			select {
			case s.roomListCh <- m:
			default:
			}
		case *protocol.RoomMessage:
			select {
			case s.RoomMessages <- m:
			default:
				s.log.Debug("room message dropped, channel full")
			}
		case *protocol.ConnectToPeer:
			s.ConnectRequests <- m
		case *protocol.PeerAddressResponse:
			s.mu.Lock()
			ch, ok := s.pendingAddrs[m.Username]
			if ok {
				delete(s.pendingAddrs, m.Username)
			}
			s.mu.Unlock()
			if ok {
				ch <- m
			}
		default:
			s.log.Debugf("unhandled server message %d", msg.Code)
		}
	}
}

// Login performs the login exchange. A refused login returns an error
// carrying the server's reason.
func (s *ServerSession) Login(ctx context.Context, password string) (*protocol.LoginResponse, error) {
	req := protocol.Login{Username: s.username, Password: password}
	if err := s.conn.WriteMessage(req.Encode()); err != nil {
		return nil, err
	}

	select {
	case resp := <-s.loginCh:
		if !resp.Success {
			return nil, fmt.Errorf("login refused: %s", resp.Reason)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// JoinRoom joins a chat room and returns the member list.
func (s *ServerSession) JoinRoom(ctx context.Context, room string) (*protocol.JoinRoomResponse, error) {
	req := protocol.JoinRoom{Room: room}
	if err := s.conn.WriteMessage(req.Encode()); err != nil {
		return nil, err
	}

	for {
		select {
		case resp := <-s.joinCh:
			if resp.Room != room {
				s.log.Debugf("ignoring join response for %q", resp.Room)
				continue
			}
			return resp, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// LeaveRoom leaves a chat room.
func (s *ServerSession) LeaveRoom(ctx context.Context, room string) error {
	req := protocol.LeaveRoom{Room: room}
	if err := s.conn.WriteMessage(req.Encode()); err != nil {
		return err
	}

	for {
		select {
		case resp := <-s.leaveCh:
			if resp.Room != room {
				continue
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Say sends one chat line to a room.
func (s *ServerSession) Say(room, message string) error {
	req := protocol.SayInChatRoom{Room: room, Message: message}
	return s.conn.WriteMessage(req.Encode())
}

// Search broadcasts a file search with the given token.
func (s *ServerSession) Search(token uint32, query string) error {
	req := protocol.FileSearch{Token: token, Query: query}
	return s.conn.WriteMessage(req.Encode())
}

// RoomList fetches the public room listing.
func (s *ServerSession) RoomList(ctx context.Context) (*protocol.RoomListResponse, error) {
	if err := s.conn.WriteMessage(protocol.RoomListRequest{}.Encode()); err != nil {
		return nil, err
	}

	select {
	case resp := <-s.roomListCh:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PeerAddress resolves a username to its listening address.
func (s *ServerSession) PeerAddress(ctx context.Context, username string) (*protocol.PeerAddressResponse, error) {
	ch := make(chan *protocol.PeerAddressResponse, 1)
	s.mu.Lock()
	s.pendingAddrs[username] = ch
	s.mu.Unlock()

	req := protocol.GetPeerAddress{Username: username}
	if err := s.conn.WriteMessage(req.Encode()); err != nil {
		s.mu.Lock()
		delete(s.pendingAddrs, username)
		s.mu.Unlock()
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pendingAddrs, username)
		s.mu.Unlock()
		return nil, ctx.Err()
	}
}

// StartPing keeps the server connection alive until ctx is done.
func (s *ServerSession) StartPing(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.conn.WriteMessage(protocol.Ping{}.Encode()); err != nil {
					s.log.Warnf("ping failed: %v", err)
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close tears down the server connection.
func (s *ServerSession) Close() error {
	return s.conn.Close()
}
