// Package daemon is the long-running soulsift process: it holds the server
// session, peer sessions, the transfer orchestrator, and the IPC surface
// the CLI talks to.
package daemon

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/soulsift/soulsift/internal/config"
	"github.com/soulsift/soulsift/internal/protocol"
	"github.com/soulsift/soulsift/internal/shares"
	"github.com/soulsift/soulsift/internal/transfer"
	"github.com/soulsift/soulsift/internal/transport"
)

const (
	pingInterval  = 60 * time.Second
	transferChunk = 32 * 1024
)

type Daemon struct {
	cfg *config.Config
	log *logrus.Logger

	server  *ServerSession
	tracker *transfer.Tracker
	orch    *transfer.Orchestrator
	store   *shares.Store

	mu           sync.Mutex
	peers        map[string]*PeerSession
	pendingFiles map[uint32]chan net.Conn

	nextToken atomic.Uint32

	peerListener net.Listener
	ipcListener  net.Listener
}

func New(cfg *config.Config, log *logrus.Logger) (*Daemon, error) {
	db, err := shares.Open(cfg.Shares.DBPath)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:          cfg,
		log:          log,
		tracker:      transfer.NewTracker(),
		store:        shares.NewStore(db),
		peers:        make(map[string]*PeerSession),
		pendingFiles: make(map[uint32]chan net.Conn),
	}
	d.orch = transfer.NewOrchestrator(d.tracker, d, log)
	return d, nil
}

// PlaceInQueue implements transfer.QueueQuerier against a live peer session.
func (d *Daemon) PlaceInQueue(ctx context.Context, peer, path string) (uint32, error) {
	ps, err := d.ensurePeer(ctx, peer)
	if err != nil {
		return 0, err
	}
	return ps.PlaceInQueue(ctx, path)
}

// Start connects, logs in, and serves until ctx is done.
func (d *Daemon) Start(ctx context.Context) error {
	if len(d.cfg.Shares.Roots) > 0 {
		n, err := d.store.ScanRoots(d.cfg.Shares.Roots)
		if err != nil {
			d.log.Warnf("share scan incomplete: %v", err)
		}
		d.log.Infof("indexed %d shared files", n)
	}

	conn, err := transport.Dial(ctx, d.cfg.Server.Address, d.log)
	if err != nil {
		return err
	}
	d.server = NewServerSession(conn, d.cfg.Server.Username, d.log)

	resp, err := d.server.Login(ctx, d.cfg.Server.Password)
	if err != nil {
		conn.Close()
		return err
	}
	d.log.Infof("logged in as %s: %s", d.cfg.Server.Username, resp.Greeting)
	d.server.StartPing(ctx, pingInterval)

	l, err := net.Listen("tcp", fmt.Sprintf(":%d", d.cfg.Listen.Port))
	if err != nil {
		return err
	}
	d.peerListener = l
	go d.acceptFileConns()

	go d.handleServerEvents(ctx)

	if err := d.startIPC(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	d.Stop()
	return nil
}

// Stop tears down listeners and connections.
func (d *Daemon) Stop() {
	if d.ipcListener != nil {
		d.ipcListener.Close()
	}
	if d.peerListener != nil {
		d.peerListener.Close()
	}
	if d.server != nil {
		d.server.Close()
	}

	d.mu.Lock()
	for _, ps := range d.peers {
		ps.Close()
	}
	d.peers = make(map[string]*PeerSession)
	d.mu.Unlock()
}

func (d *Daemon) handleServerEvents(ctx context.Context) {
	for {
		select {
		case m := <-d.server.ConnectRequests:
			go d.handleConnectRequest(ctx, m)
		case m := <-d.server.RoomMessages:
			d.log.WithFields(logrus.Fields{
				"room": m.Room,
				"user": m.Username,
			}).Info(m.Message)
		case <-ctx.Done():
			return
		}
	}
}

// handleConnectRequest serves the indirect connection path: the server says
// a peer wants us, so we dial out to them.
func (d *Daemon) handleConnectRequest(ctx context.Context, m *protocol.ConnectToPeer) {
	d.mu.Lock()
	_, exists := d.peers[m.Username]
	d.mu.Unlock()
	if exists {
		return
	}

	if _, err := d.ensurePeer(ctx, m.Username); err != nil {
		d.log.Warnf("connect to %s failed: %v", m.Username, err)
	}
}

// ensurePeer returns the live session for a peer, dialing one if needed.
func (d *Daemon) ensurePeer(ctx context.Context, username string) (*PeerSession, error) {
	d.mu.Lock()
	ps, ok := d.peers[username]
	d.mu.Unlock()
	if ok {
		return ps, nil
	}

	addr, err := d.server.PeerAddress(ctx, username)
	if err != nil {
		return nil, err
	}
	hostport := net.JoinHostPort(addr.IP.String(), strconv.Itoa(int(addr.Port)))

	conn, err := transport.Dial(ctx, hostport, d.log)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	if existing, ok := d.peers[username]; ok {
		d.mu.Unlock()
		conn.Close()
		return existing, nil
	}
	ps = NewPeerSession(username, conn, d.log)
	d.peers[username] = ps
	d.mu.Unlock()

	d.log.Debugf("connected to peer %s at %s", username, hostport)
	go d.serveSession(ps)
	return ps, nil
}

func (d *Daemon) removePeer(ps *PeerSession) {
	d.mu.Lock()
	if d.peers[ps.Username] == ps {
		delete(d.peers, ps.Username)
	}
	d.mu.Unlock()
}

// serveSession answers the remote's queue and place requests until the
// session closes.
func (d *Daemon) serveSession(ps *PeerSession) {
	defer d.removePeer(ps)

	for {
		select {
		case m, ok := <-ps.QueueDownloads:
			if !ok {
				return
			}
			d.handleQueueDownload(ps, m)
		case m, ok := <-ps.placeRequests:
			if !ok {
				return
			}
			d.handlePlaceRequest(ps, m)
		}
	}
}

func (d *Daemon) handleQueueDownload(ps *PeerSession, m *protocol.QueueDownload) {
	file, err := d.store.FindByPath(m.Filename)
	if err != nil {
		d.log.Debugf("denying %q to %s: %v", m.Filename, ps.Username, err)
		if err := ps.SendUploadDenied(m.Filename, "File not shared."); err != nil {
			d.log.Warnf("send upload denied to %s: %v", ps.Username, err)
		}
		return
	}

	token := d.nextToken.Add(1)
	go d.orch.Enqueue(context.Background(), transfer.Upload, ps.Username, file.Path,
		uint64(file.Size), d.uploadOp(ps, file, token))
}

func (d *Daemon) handlePlaceRequest(ps *PeerSession, m *protocol.PlaceInQueueRequest) {
	place := uint32(0)
	for _, v := range d.tracker.Uploads() {
		if v.State == transfer.StateQueued {
			place++
		}
	}
	if err := ps.SendPlaceInQueueResponse(m.Filename, place); err != nil {
		d.log.Warnf("send place response to %s: %v", ps.Username, err)
	}
}

// expectFile registers a pending inbound file connection for a token.
func (d *Daemon) expectFile(token uint32) chan net.Conn {
	ch := make(chan net.Conn, 1)
	d.mu.Lock()
	d.pendingFiles[token] = ch
	d.mu.Unlock()
	return ch
}

// forgetFile retires a token. Deliveries only happen while the token is in
// the map, so after the delete the channel cannot gain another connection;
// one already buffered but never received is closed here.
func (d *Daemon) forgetFile(token uint32, ch chan net.Conn) {
	d.mu.Lock()
	delete(d.pendingFiles, token)
	d.mu.Unlock()

	select {
	case conn := <-ch:
		conn.Close()
	default:
	}
}

// acceptFileConns serves the listen port. Every inbound connection opens
// with the transfer token; unknown tokens are dropped.
func (d *Daemon) acceptFileConns() {
	for {
		conn, err := d.peerListener.Accept()
		if err != nil {
			return
		}
		go d.handleFileConn(conn)
	}
}

func (d *Daemon) handleFileConn(conn net.Conn) {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	token, err := readFileHeader(conn)
	if err != nil {
		d.log.Debugf("bad file connection from %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})

	// The channel has capacity 1 and each token has a single connection
	// slot, so the send under the lock never blocks.
	d.mu.Lock()
	ch, ok := d.pendingFiles[token]
	if ok {
		delete(d.pendingFiles, token)
		ch <- conn
	}
	d.mu.Unlock()

	if !ok {
		d.log.Debugf("no pending transfer for token %d from %s", token, conn.RemoteAddr())
		conn.Close()
	}
}
