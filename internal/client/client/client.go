// Package client talks to the daemon over its unix socket.
package client

import (
	"fmt"
	"net"

	"github.com/soulsift/soulsift/internal/ipc"
)

type Client struct {
	conn net.Conn
}

func New(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon at %s: %w (is the daemon running?)", socketPath, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) do(req *ipc.Request) (*ipc.Response, error) {
	if err := ipc.WriteRequest(c.conn, req); err != nil {
		return nil, err
	}
	return ipc.ReadResponse(c.conn)
}

func (c *Client) Download(peer, path string, size uint64) (*ipc.Response, error) {
	return c.do(&ipc.Request{Command: ipc.CmdDownload, Peer: peer, Path: path, Size: size})
}

func (c *Client) Cancel(peer, path string) (*ipc.Response, error) {
	return c.do(&ipc.Request{Command: ipc.CmdCancel, Peer: peer, Path: path})
}

func (c *Client) Queue(peer, path string) (*ipc.Response, error) {
	return c.do(&ipc.Request{Command: ipc.CmdQueue, Peer: peer, Path: path})
}

func (c *Client) Status() (*ipc.Response, error) {
	return c.do(&ipc.Request{Command: ipc.CmdStatus})
}

func (c *Client) Search(query string) (*ipc.Response, error) {
	return c.do(&ipc.Request{Command: ipc.CmdSearch, Query: query})
}

func (c *Client) Join(room string) (*ipc.Response, error) {
	return c.do(&ipc.Request{Command: ipc.CmdJoin, Room: room})
}

func (c *Client) History() (*ipc.Response, error) {
	return c.do(&ipc.Request{Command: ipc.CmdHistory})
}
