// Package transport frames protocol messages over a stream connection.
// Each frame is a little-endian u32 length covering the message code and
// payload, followed by the u32 code and the raw payload bytes. Inbound
// messages are read by a background loop and routed to a channel.
package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/soulsift/soulsift/internal/protocol"
)

// maxFrameSize bounds a single inbound frame. Anything larger is treated as
// a corrupt stream.
const maxFrameSize = 1 << 26

// Conn wraps a stream connection with message framing. Writes are safe for
// concurrent use; inbound messages arrive on the Inbound channel in wire
// order until the connection closes.
type Conn struct {
	conn net.Conn
	log  *logrus.Logger

	wmu sync.Mutex

	inbound   chan *protocol.Message
	done      chan struct{}
	closeOnce sync.Once
}

// NewConn starts the read loop on an established connection.
func NewConn(conn net.Conn, log *logrus.Logger) *Conn {
	if log == nil {
		log = logrus.New()
	}
	c := &Conn{
		conn:    conn,
		log:     log,
		inbound: make(chan *protocol.Message, 64),
		done:    make(chan struct{}),
	}
	go c.listen()
	return c
}

// Dial connects to addr and wraps the connection.
func Dial(ctx context.Context, addr string, log *logrus.Logger) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewConn(conn, log), nil
}

// Inbound returns the channel of decoded frames. It is closed when the read
// loop exits, whether from Close or a peer disconnect.
func (c *Conn) Inbound() <-chan *protocol.Message {
	return c.inbound
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// WriteMessage frames and sends one message.
func (c *Conn) WriteMessage(msg *protocol.Message) error {
	frame := make([]byte, 0, 8+len(msg.Payload))
	frame = binary.LittleEndian.AppendUint32(frame, uint32(4+len(msg.Payload)))
	frame = binary.LittleEndian.AppendUint32(frame, msg.Code)
	frame = append(frame, msg.Payload...)

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("write message %d: %w", msg.Code, err)
	}
	return nil
}

// Close shuts the connection down and stops the read loop.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) listen() {
	defer close(c.inbound)
	defer c.Close()

	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(c.conn, header); err != nil {
			if err != io.EOF && !closed(c.done) {
				c.log.Debugf("read frame length: %v", err)
			}
			return
		}
		length := binary.LittleEndian.Uint32(header)
		if length < 4 || length > maxFrameSize {
			c.log.Warnf("dropping connection: bad frame length %d", length)
			return
		}

		body := make([]byte, length)
		if _, err := io.ReadFull(c.conn, body); err != nil {
			if !closed(c.done) {
				c.log.Debugf("read frame body: %v", err)
			}
			return
		}

		msg := &protocol.Message{
			Code:    binary.LittleEndian.Uint32(body[:4]),
			Payload: body[4:],
		}
		select {
		case c.inbound <- msg:
		case <-c.done:
			return
		}
	}
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
