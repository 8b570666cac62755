package daemon

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/soulsift/soulsift/internal/protocol"
	"github.com/soulsift/soulsift/internal/transfer"
	"github.com/soulsift/soulsift/internal/transport"
)

// PeerSession is one framed connection to a remote peer. Inbound messages
// are decoded and routed to per-kind channels; a malformed message is
// dropped and logged, the connection keeps processing.
type PeerSession struct {
	Username string

	conn *transport.Conn
	log  *logrus.Logger

	// QueueDownloads carries the remote's requests against our upload
	// queue; the daemon consumes them.
	QueueDownloads chan *protocol.QueueDownload

	transferRequests  chan *protocol.TransferRequest
	transferResponses chan *protocol.TransferResponse
	placeRequests     chan *protocol.PlaceInQueueRequest
	placeResponses    chan *protocol.PlaceInQueueResponse
	uploadDenied      chan *protocol.UploadDenied
	uploadFailed      chan *protocol.UploadFailed
}

func NewPeerSession(username string, conn *transport.Conn, log *logrus.Logger) *PeerSession {
	p := &PeerSession{
		Username:          username,
		conn:              conn,
		log:               log,
		QueueDownloads:    make(chan *protocol.QueueDownload, 100),
		transferRequests:  make(chan *protocol.TransferRequest, 100),
		transferResponses: make(chan *protocol.TransferResponse, 100),
		placeRequests:     make(chan *protocol.PlaceInQueueRequest, 100),
		placeResponses:    make(chan *protocol.PlaceInQueueResponse, 100),
		uploadDenied:      make(chan *protocol.UploadDenied, 100),
		uploadFailed:      make(chan *protocol.UploadFailed, 100),
	}
	go p.listen()
	return p
}

func (p *PeerSession) listen() {
	defer close(p.QueueDownloads)
	defer close(p.placeRequests)

	for msg := range p.conn.Inbound() {
		decoded, err := protocol.DecodePeer(msg)
		if err != nil {
			p.log.Debugf("dropping peer message %d from %s: %v", msg.Code, p.Username, err)
			continue
		}

		switch m := decoded.(type) {
		case *protocol.QueueDownload:
			p.QueueDownloads <- m
		case *protocol.TransferRequest:
			p.transferRequests <- m
		case *protocol.TransferResponse:
			p.transferResponses <- m
		case *protocol.PlaceInQueueRequest:
			p.placeRequests <- m
		case *protocol.PlaceInQueueResponse:
			p.placeResponses <- m
		case *protocol.UploadDenied:
			p.uploadDenied <- m
		case *protocol.UploadFailed:
			p.uploadFailed <- m
		default:
			p.log.Debugf("unhandled peer message %d from %s", msg.Code, p.Username)
		}
	}
}

// SendQueueDownload asks the peer to queue a file for upload to us.
func (p *PeerSession) SendQueueDownload(path string) error {
	m := &protocol.QueueDownload{Filename: path}
	return p.conn.WriteMessage(m.Encode())
}

// SendTransferRequest announces an upload we are ready to perform.
func (p *PeerSession) SendTransferRequest(token uint32, path string, size uint64) error {
	m := &protocol.TransferRequest{
		Direction: protocol.DirectionUpload,
		Token:     token,
		Filename:  path,
		Size:      size,
	}
	return p.conn.WriteMessage(m.Encode())
}

// SendTransferResponse answers the peer's transfer request.
func (p *PeerSession) SendTransferResponse(m *protocol.TransferResponse) error {
	return p.conn.WriteMessage(m.Encode())
}

// SendUploadDenied rejects a queued download with a reason.
func (p *PeerSession) SendUploadDenied(path, reason string) error {
	m := &protocol.UploadDenied{Filename: path, Reason: reason}
	return p.conn.WriteMessage(m.Encode())
}

// SendUploadFailed tells the peer a granted upload broke.
func (p *PeerSession) SendUploadFailed(path string) error {
	m := &protocol.UploadFailed{Filename: path}
	return p.conn.WriteMessage(m.Encode())
}

// SendPlaceInQueueResponse reports a file's place in our upload queue.
func (p *PeerSession) SendPlaceInQueueResponse(path string, place uint32) error {
	m := &protocol.PlaceInQueueResponse{Filename: path, Place: place}
	return p.conn.WriteMessage(m.Encode())
}

// AwaitTransferStart waits for the peer's upload-direction transfer request
// for the given path. A denial or failure notice for the same path resolves
// the wait instead: denial as a *transfer.RejectionError, failure as a
// plain error.
func (p *PeerSession) AwaitTransferStart(ctx context.Context, path string) (*protocol.TransferRequest, error) {
	for {
		select {
		case req := <-p.transferRequests:
			if req.Direction != protocol.DirectionUpload || req.Filename != path {
				p.log.Debugf("ignoring transfer request for %q from %s", req.Filename, p.Username)
				continue
			}
			return req, nil
		case denied := <-p.uploadDenied:
			if denied.Filename != path {
				continue
			}
			return nil, &transfer.RejectionError{Reason: denied.Reason}
		case failed := <-p.uploadFailed:
			if failed.Filename != path {
				continue
			}
			return nil, fmt.Errorf("upload failed on remote side: %s", failed.Filename)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// AwaitTransferResponse waits for the peer's answer to our transfer request
// with the given token.
func (p *PeerSession) AwaitTransferResponse(ctx context.Context, token uint32) (*protocol.TransferResponse, error) {
	for {
		select {
		case resp := <-p.transferResponses:
			if resp.Token != token {
				p.log.Debugf("ignoring transfer response for token %d from %s", resp.Token, p.Username)
				continue
			}
			return resp, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// PlaceInQueue performs the place-in-queue round trip for one file.
func (p *PeerSession) PlaceInQueue(ctx context.Context, path string) (uint32, error) {
	m := &protocol.PlaceInQueueRequest{Filename: path}
	if err := p.conn.WriteMessage(m.Encode()); err != nil {
		return 0, err
	}

	for {
		select {
		case resp := <-p.placeResponses:
			if resp.Filename != path {
				continue
			}
			return resp.Place, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Close tears down the peer connection.
func (p *PeerSession) Close() error {
	return p.conn.Close()
}
