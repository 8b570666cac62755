package daemon

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/soulsift/soulsift/internal/protocol"
	"github.com/soulsift/soulsift/internal/shares"
	"github.com/soulsift/soulsift/internal/transfer"
)

// Download enqueues a download from peer and reports the enqueue outcome.
func (d *Daemon) Download(ctx context.Context, peer, path string, size uint64) transfer.Result {
	return d.orch.Enqueue(ctx, transfer.Download, peer, path, size, d.downloadOp(peer, path))
}

// downloadOp is the download lifecycle: queue the file with the remote,
// wait for its upload offer, accept, then receive the byte stream on the
// token-matched file connection.
func (d *Daemon) downloadOp(peer, path string) transfer.TransferFunc {
	return func(ctx context.Context, emit transfer.EmitFunc) error {
		ps, err := d.ensurePeer(ctx, peer)
		if err != nil {
			return err
		}

		if err := ps.SendQueueDownload(path); err != nil {
			return err
		}
		emit(transfer.StateQueued, 0)

		req, err := ps.AwaitTransferStart(ctx, path)
		if err != nil {
			return err
		}
		emit(transfer.StateInitializing, 0)

		fileCh := d.expectFile(req.Token)
		defer d.forgetFile(req.Token, fileCh)

		resp := &protocol.TransferResponse{Token: req.Token, Allowed: true}
		if err := ps.SendTransferResponse(resp); err != nil {
			return err
		}

		var conn net.Conn
		select {
		case conn = <-fileCh:
		case <-ctx.Done():
			return ctx.Err()
		}
		defer conn.Close()

		total, err := d.receiveFile(ctx, conn, path, req.Size, emit)
		if err != nil {
			return err
		}

		if err := d.store.RecordDownload(peer, path, int64(total)); err != nil {
			d.log.Warnf("record download history: %v", err)
		}
		d.log.Infof("downloaded %q from %s (%d bytes)", path, peer, total)
		return nil
	}
}

func (d *Daemon) receiveFile(ctx context.Context, conn net.Conn, path string, size uint64, emit transfer.EmitFunc) (uint64, error) {
	if err := os.MkdirAll(d.cfg.Downloads.Dir, 0o755); err != nil {
		return 0, err
	}
	dst := filepath.Join(d.cfg.Downloads.Dir, remoteBase(path))
	f, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	var total uint64
	buf := make([]byte, transferChunk)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += uint64(n)
			emit(transfer.StateInProgress, total)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			return total, err
		}
		if size > 0 && total >= size {
			break
		}
	}

	if size > 0 && total < size {
		return total, fmt.Errorf("short transfer: got %d of %d bytes", total, size)
	}
	return total, nil
}

// uploadOp is the upload lifecycle: offer the file, wait for the remote's
// answer, then dial its listen port and stream the bytes.
func (d *Daemon) uploadOp(ps *PeerSession, file shares.SharedFile, token uint32) transfer.TransferFunc {
	return func(ctx context.Context, emit transfer.EmitFunc) error {
		emit(transfer.StateQueued, 0)

		if err := ps.SendTransferRequest(token, file.Path, uint64(file.Size)); err != nil {
			return err
		}

		resp, err := ps.AwaitTransferResponse(ctx, token)
		if err != nil {
			return err
		}
		if !resp.Allowed {
			return &transfer.RejectionError{Reason: resp.Reason}
		}
		emit(transfer.StateInitializing, 0)

		total, err := d.sendFile(ctx, ps.Username, file, token, emit)
		if err != nil {
			if serr := ps.SendUploadFailed(file.Path); serr != nil {
				d.log.Debugf("send upload failed notice: %v", serr)
			}
			return err
		}

		d.log.Infof("uploaded %q to %s (%d bytes)", file.Path, ps.Username, total)
		return nil
	}
}

func (d *Daemon) sendFile(ctx context.Context, peer string, file shares.SharedFile, token uint32, emit transfer.EmitFunc) (uint64, error) {
	addr, err := d.server.PeerAddress(ctx, peer)
	if err != nil {
		return 0, err
	}
	hostport := net.JoinHostPort(addr.IP.String(), strconv.Itoa(int(addr.Port)))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", hostport)
	if err != nil {
		return 0, fmt.Errorf("dial file connection to %s: %w", hostport, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	if err := writeFileHeader(conn, token); err != nil {
		return 0, err
	}

	f, err := os.Open(file.Path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var total uint64
	buf := make([]byte, transferChunk)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if _, werr := conn.Write(buf[:n]); werr != nil {
				if ctx.Err() != nil {
					return total, ctx.Err()
				}
				return total, werr
			}
			total += uint64(n)
			emit(transfer.StateInProgress, total)
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

// File connections open with the transfer token so the receiver can match
// the raw stream to its pending download.
func writeFileHeader(w io.Writer, token uint32) error {
	header := binary.LittleEndian.AppendUint32(make([]byte, 0, 4), token)
	_, err := w.Write(header)
	return err
}

func readFileHeader(r io.Reader) (uint32, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(header), nil
}

// remoteBase extracts the final path element of a remote path, which may
// use backslash separators.
func remoteBase(path string) string {
	if i := strings.LastIndexAny(path, "\\/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
