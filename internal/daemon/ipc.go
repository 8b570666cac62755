package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/soulsift/soulsift/internal/ipc"
	"github.com/soulsift/soulsift/internal/transfer"
)

const ipcRequestTimeout = 30 * time.Second

// startIPC serves CLI requests on the unix socket.
func (d *Daemon) startIPC(ctx context.Context) error {
	socketPath := d.cfg.IPC.SocketPath
	os.Remove(socketPath)

	l, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}
	d.ipcListener = l
	d.log.Infof("ipc server listening on %s", socketPath)

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go d.handleIPCConn(ctx, conn)
		}
	}()
	return nil
}

func (d *Daemon) handleIPCConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	for {
		req, err := ipc.ReadRequest(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				d.log.Debugf("ipc read: %v", err)
			}
			return
		}

		resp := d.handleIPCRequest(ctx, req)
		if err := ipc.WriteResponse(conn, resp); err != nil {
			d.log.Debugf("ipc write: %v", err)
			return
		}
	}
}

func (d *Daemon) handleIPCRequest(ctx context.Context, req *ipc.Request) *ipc.Response {
	reqCtx, cancel := context.WithTimeout(ctx, ipcRequestTimeout)
	defer cancel()

	switch req.Command {
	case ipc.CmdDownload:
		res := d.Download(reqCtx, req.Peer, req.Path, req.Size)
		return &ipc.Response{
			OK:     true,
			Status: res.Status.String(),
			Reason: res.Reason,
			Detail: res.Detail,
		}

	case ipc.CmdCancel:
		err := d.orch.Cancel(transfer.Download, req.Peer, transfer.FileID(req.Path))
		if errors.Is(err, transfer.ErrNotFound) {
			err = d.orch.Cancel(transfer.Upload, req.Peer, transfer.FileID(req.Path))
		}
		if err != nil {
			return &ipc.Response{Error: err.Error()}
		}
		return &ipc.Response{OK: true, Message: "cancelled"}

	case ipc.CmdQueue:
		place, err := d.orch.PlaceInQueue(reqCtx, transfer.Download, req.Peer, transfer.FileID(req.Path))
		if err != nil {
			return &ipc.Response{Error: err.Error()}
		}
		return &ipc.Response{OK: true, Place: place, HasPlace: true}

	case ipc.CmdStatus:
		return &ipc.Response{OK: true, Transfers: d.tracker.Snapshot()}

	case ipc.CmdSearch:
		token := d.nextToken.Add(1)
		if err := d.server.Search(token, req.Query); err != nil {
			return &ipc.Response{Error: err.Error()}
		}
		return &ipc.Response{OK: true, Message: "search sent"}

	case ipc.CmdJoin:
		resp, err := d.server.JoinRoom(reqCtx, req.Room)
		if err != nil {
			return &ipc.Response{Error: err.Error()}
		}
		users := make([]string, 0, len(resp.Users))
		for _, u := range resp.Users {
			users = append(users, u.Username)
		}
		return &ipc.Response{OK: true, RoomUsers: users}

	case ipc.CmdHistory:
		records, err := d.store.History()
		if err != nil {
			return &ipc.Response{Error: err.Error()}
		}
		entries := make([]ipc.HistoryEntry, 0, len(records))
		for _, r := range records {
			entries = append(entries, ipc.HistoryEntry{
				Peer:        r.Peer,
				Path:        r.Path,
				Size:        r.Size,
				CompletedAt: r.CompletedAt,
			})
		}
		return &ipc.Response{OK: true, History: entries}

	default:
		return &ipc.Response{Error: "unknown command: " + string(req.Command)}
	}
}
