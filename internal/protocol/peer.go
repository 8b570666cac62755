package protocol

import "fmt"

// TransferRequest starts (or answers the queueing of) a transfer. Direction
// is from the sender's point of view; upload requests carry the file size.
type TransferRequest struct {
	Direction uint32
	Token     uint32
	Filename  string
	Size      uint64
}

func (m *TransferRequest) PeerCode() PeerCode { return PeerTransferRequest }

func (m *TransferRequest) Encode() *Message {
	b := NewBuilder()
	b.WriteUint32(m.Direction)
	b.WriteUint32(m.Token)
	b.WriteString(m.Filename)
	if m.Direction == DirectionUpload {
		b.WriteUint64(m.Size)
	}
	return b.Message(uint32(PeerTransferRequest))
}

func DecodeTransferRequest(msg *Message) (*TransferRequest, error) {
	if msg.Code != uint32(PeerTransferRequest) {
		return nil, &CodeMismatchError{Want: uint32(PeerTransferRequest), Got: msg.Code}
	}
	r := NewReader(msg.Payload)
	m, err := readTransferRequest(r)
	if err != nil {
		return nil, &ReadError{Code: msg.Code, Remaining: r.Remaining(), Err: err}
	}
	return m, nil
}

func readTransferRequest(r *Reader) (*TransferRequest, error) {
	m := &TransferRequest{}
	var err error
	if m.Direction, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	if m.Direction != DirectionDownload && m.Direction != DirectionUpload {
		return nil, fmt.Errorf("transfer direction %d out of range", m.Direction)
	}
	if m.Token, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	if m.Filename, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Direction == DirectionUpload {
		if m.Size, err = r.ReadUint64(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// TransferResponse answers a TransferRequest. Trailing bytes after the
// allowed flag are a queue size when allowed and a rejection reason when
// denied; their presence is probed, not flagged on the wire.
type TransferResponse struct {
	Token   uint32
	Allowed bool
	Size    uint64
	Reason  string
}

func (m *TransferResponse) PeerCode() PeerCode { return PeerTransferResponse }

func (m *TransferResponse) Encode() *Message {
	b := NewBuilder()
	b.WriteUint32(m.Token)
	b.WriteBool(m.Allowed)
	if !m.Allowed {
		b.WriteString(m.Reason)
	} else if m.Size > 0 {
		b.WriteUint64(m.Size)
	}
	return b.Message(uint32(PeerTransferResponse))
}

func DecodeTransferResponse(msg *Message) (*TransferResponse, error) {
	if msg.Code != uint32(PeerTransferResponse) {
		return nil, &CodeMismatchError{Want: uint32(PeerTransferResponse), Got: msg.Code}
	}
	r := NewReader(msg.Payload)
	m, err := readTransferResponse(r)
	if err != nil {
		return nil, &ReadError{Code: msg.Code, Remaining: r.Remaining(), Err: err}
	}
	return m, nil
}

func readTransferResponse(r *Reader) (*TransferResponse, error) {
	m := &TransferResponse{}
	var err error
	if m.Token, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	if m.Allowed, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if r.Remaining() > 0 {
		if m.Allowed {
			if m.Size, err = r.ReadUint64(); err != nil {
				return nil, err
			}
		} else {
			if m.Reason, err = r.ReadString(); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// QueueDownload asks the remote peer to put a file into its upload queue.
type QueueDownload struct {
	Filename string
}

func (m *QueueDownload) PeerCode() PeerCode { return PeerQueueDownload }

func (m *QueueDownload) Encode() *Message {
	b := NewBuilder()
	b.WriteString(m.Filename)
	return b.Message(uint32(PeerQueueDownload))
}

func readQueueDownload(r *Reader) (*QueueDownload, error) {
	filename, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return &QueueDownload{Filename: filename}, nil
}

// PlaceInQueueRequest asks where a queued file sits in the remote queue.
type PlaceInQueueRequest struct {
	Filename string
}

func (m *PlaceInQueueRequest) PeerCode() PeerCode { return PeerPlaceInQueueRequest }

func (m *PlaceInQueueRequest) Encode() *Message {
	b := NewBuilder()
	b.WriteString(m.Filename)
	return b.Message(uint32(PeerPlaceInQueueRequest))
}

func readPlaceInQueueRequest(r *Reader) (*PlaceInQueueRequest, error) {
	filename, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return &PlaceInQueueRequest{Filename: filename}, nil
}

// PlaceInQueueResponse reports a file's position in the remote queue.
type PlaceInQueueResponse struct {
	Filename string
	Place    uint32
}

func (m *PlaceInQueueResponse) PeerCode() PeerCode { return PeerPlaceInQueueResponse }

func (m *PlaceInQueueResponse) Encode() *Message {
	b := NewBuilder()
	b.WriteString(m.Filename)
	b.WriteUint32(m.Place)
	return b.Message(uint32(PeerPlaceInQueueResponse))
}

func DecodePlaceInQueueResponse(msg *Message) (*PlaceInQueueResponse, error) {
	if msg.Code != uint32(PeerPlaceInQueueResponse) {
		return nil, &CodeMismatchError{Want: uint32(PeerPlaceInQueueResponse), Got: msg.Code}
	}
	r := NewReader(msg.Payload)
	m, err := readPlaceInQueueResponse(r)
	if err != nil {
		return nil, &ReadError{Code: msg.Code, Remaining: r.Remaining(), Err: err}
	}
	return m, nil
}

func readPlaceInQueueResponse(r *Reader) (*PlaceInQueueResponse, error) {
	m := &PlaceInQueueResponse{}
	var err error
	if m.Filename, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Place, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	return m, nil
}

// UploadFailed tells the downloader a previously granted upload broke.
type UploadFailed struct {
	Filename string
}

func (m *UploadFailed) PeerCode() PeerCode { return PeerUploadFailed }

func (m *UploadFailed) Encode() *Message {
	b := NewBuilder()
	b.WriteString(m.Filename)
	return b.Message(uint32(PeerUploadFailed))
}

func readUploadFailed(r *Reader) (*UploadFailed, error) {
	filename, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return &UploadFailed{Filename: filename}, nil
}

// UploadDenied rejects a queued download with a reason.
type UploadDenied struct {
	Filename string
	Reason   string
}

func (m *UploadDenied) PeerCode() PeerCode { return PeerUploadDenied }

func (m *UploadDenied) Encode() *Message {
	b := NewBuilder()
	b.WriteString(m.Filename)
	b.WriteString(m.Reason)
	return b.Message(uint32(PeerUploadDenied))
}

func readUploadDenied(r *Reader) (*UploadDenied, error) {
	m := &UploadDenied{}
	var err error
	if m.Filename, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Reason, err = r.ReadString(); err != nil {
		return nil, err
	}
	return m, nil
}
