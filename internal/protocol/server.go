package protocol

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net"
)

const (
	clientVersion = 160
	minorVersion  = 1
)

// Login is the session bootstrap request.
type Login struct {
	Username string
	Password string
}

func (m Login) ServerCode() ServerCode { return ServerLogin }

func (m Login) Encode() *Message {
	sum := md5.Sum([]byte(m.Username + m.Password))

	b := NewBuilder()
	b.WriteString(m.Username)
	b.WriteString(m.Password)
	b.WriteUint32(clientVersion)
	b.WriteString(hex.EncodeToString(sum[:]))
	b.WriteUint32(minorVersion)
	return b.Message(uint32(ServerLogin))
}

// LoginResponse carries either a greeting (success) or a failure reason.
type LoginResponse struct {
	Success  bool
	Greeting string
	OwnIP    net.IP
	Reason   string
}

func (m *LoginResponse) ServerCode() ServerCode { return ServerLogin }

func DecodeLoginResponse(msg *Message) (*LoginResponse, error) {
	if msg.Code != uint32(ServerLogin) {
		return nil, &CodeMismatchError{Want: uint32(ServerLogin), Got: msg.Code}
	}
	r := NewReader(msg.Payload)
	m, err := readLoginResponse(r)
	if err != nil {
		return nil, &ReadError{Code: msg.Code, Remaining: r.Remaining(), Err: err}
	}
	return m, nil
}

func readLoginResponse(r *Reader) (*LoginResponse, error) {
	success, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	m := &LoginResponse{Success: success}

	if !success {
		m.Reason, err = r.ReadString()
		return m, err
	}

	m.Greeting, err = r.ReadString()
	if err != nil {
		return nil, err
	}
	ip, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	m.OwnIP = net.IPv4(byte(ip>>24), byte(ip>>16), byte(ip>>8), byte(ip))
	return m, nil
}

// JoinRoom asks the server to join (or create) a room.
type JoinRoom struct {
	Room    string
	Private bool
}

func (m JoinRoom) ServerCode() ServerCode { return ServerJoinRoom }

func (m JoinRoom) Encode() *Message {
	b := NewBuilder()
	b.WriteString(m.Room)
	if m.Private {
		b.WriteUint32(1)
	} else {
		b.WriteUint32(0)
	}
	return b.Message(uint32(ServerJoinRoom))
}

// RoomUser is one row of the join-room user table, assembled positionally
// from the parallel wire lists.
type RoomUser struct {
	Username  string
	Status    UserStatus
	AvgSpeed  uint32
	Downloads uint64
	Files     uint32
	Dirs      uint32
	SlotsFree uint32
	Country   string
}

// JoinRoomResponse is the server's room snapshot. The wire format transmits
// the user table as independently count-prefixed parallel lists; trailing
// bytes after the country list are the private-room extension.
type JoinRoomResponse struct {
	Room      string
	Users     []RoomUser
	Private   bool
	Owner     string
	Operators []string
}

func (m *JoinRoomResponse) ServerCode() ServerCode { return ServerJoinRoom }

func DecodeJoinRoomResponse(msg *Message) (*JoinRoomResponse, error) {
	if msg.Code != uint32(ServerJoinRoom) {
		return nil, &CodeMismatchError{Want: uint32(ServerJoinRoom), Got: msg.Code}
	}
	r := NewReader(msg.Payload)
	m, err := readJoinRoomResponse(r)
	if err != nil {
		return nil, &ReadError{Code: msg.Code, Remaining: r.Remaining(), Err: err}
	}
	return m, nil
}

type roomUserData struct {
	avgSpeed  uint32
	downloads uint64
	files     uint32
	dirs      uint32
}

func readJoinRoomResponse(r *Reader) (*JoinRoomResponse, error) {
	room, err := r.ReadString()
	if err != nil {
		return nil, err
	}

	names, err := readStringList(r)
	if err != nil {
		return nil, err
	}

	statusCount, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if err := r.checkCount(statusCount, 4); err != nil {
		return nil, err
	}
	statuses := make([]UserStatus, statusCount)
	for i := range statuses {
		v, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		statuses[i] = UserStatus(v)
	}

	dataCount, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if err := r.checkCount(dataCount, 20); err != nil {
		return nil, err
	}
	data := make([]roomUserData, dataCount)
	for i := range data {
		if data[i].avgSpeed, err = r.ReadUint32(); err != nil {
			return nil, err
		}
		if data[i].downloads, err = r.ReadUint64(); err != nil {
			return nil, err
		}
		if data[i].files, err = r.ReadUint32(); err != nil {
			return nil, err
		}
		if data[i].dirs, err = r.ReadUint32(); err != nil {
			return nil, err
		}
	}

	slotsCount, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if err := r.checkCount(slotsCount, 4); err != nil {
		return nil, err
	}
	slots := make([]uint32, slotsCount)
	for i := range slots {
		if slots[i], err = r.ReadUint32(); err != nil {
			return nil, err
		}
	}

	countries, err := readStringList(r)
	if err != nil {
		return nil, err
	}

	// Each list declares its own count. Well-formed messages agree on the
	// user count, but that is verified per index, not assumed.
	users := make([]RoomUser, len(names))
	for i, name := range names {
		if i >= len(statuses) || i >= len(data) || i >= len(slots) || i >= len(countries) {
			return nil, fmt.Errorf("user %d of %d missing from a parallel list (statuses=%d data=%d slots=%d countries=%d)",
				i, len(names), len(statuses), len(data), len(slots), len(countries))
		}
		users[i] = RoomUser{
			Username:  name,
			Status:    statuses[i],
			AvgSpeed:  data[i].avgSpeed,
			Downloads: data[i].downloads,
			Files:     data[i].files,
			Dirs:      data[i].dirs,
			SlotsFree: slots[i],
			Country:   countries[i],
		}
	}

	m := &JoinRoomResponse{Room: room, Users: users}

	// Terminal probe: trailing bytes mean a private room.
	if r.Remaining() > 0 {
		m.Private = true
		if m.Owner, err = r.ReadString(); err != nil {
			return nil, err
		}
		if m.Operators, err = readStringList(r); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func readStringList(r *Reader) ([]string, error) {
	count, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if err := r.checkCount(count, 4); err != nil {
		return nil, err
	}
	list := make([]string, count)
	for i := range list {
		if list[i], err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// LeaveRoom asks the server to leave a room; the response echoes the name.
type LeaveRoom struct {
	Room string
}

func (m LeaveRoom) ServerCode() ServerCode { return ServerLeaveRoom }

func (m LeaveRoom) Encode() *Message {
	b := NewBuilder()
	b.WriteString(m.Room)
	return b.Message(uint32(ServerLeaveRoom))
}

type LeaveRoomResponse struct {
	Room string
}

func (m *LeaveRoomResponse) ServerCode() ServerCode { return ServerLeaveRoom }

func readLeaveRoomResponse(r *Reader) (*LeaveRoomResponse, error) {
	room, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return &LeaveRoomResponse{Room: room}, nil
}

// SayInChatRoom posts a chat line to a joined room.
type SayInChatRoom struct {
	Room    string
	Message string
}

func (m SayInChatRoom) ServerCode() ServerCode { return ServerSayInChatRoom }

func (m SayInChatRoom) Encode() *Message {
	b := NewBuilder()
	b.WriteString(m.Room)
	b.WriteString(m.Message)
	return b.Message(uint32(ServerSayInChatRoom))
}

// RoomMessage is an inbound chat line.
type RoomMessage struct {
	Room     string
	Username string
	Message  string
}

func (m *RoomMessage) ServerCode() ServerCode { return ServerSayInChatRoom }

func readRoomMessage(r *Reader) (*RoomMessage, error) {
	m := &RoomMessage{}
	var err error
	if m.Room, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Username, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Message, err = r.ReadString(); err != nil {
		return nil, err
	}
	return m, nil
}

// FileSearch issues a network-wide search under a caller-chosen token.
type FileSearch struct {
	Token uint32
	Query string
}

func (m FileSearch) ServerCode() ServerCode { return ServerFileSearch }

func (m FileSearch) Encode() *Message {
	b := NewBuilder()
	b.WriteUint32(m.Token)
	b.WriteString(m.Query)
	return b.Message(uint32(ServerFileSearch))
}

// GetPeerAddress asks the server for a peer's direct address.
type GetPeerAddress struct {
	Username string
}

func (m GetPeerAddress) ServerCode() ServerCode { return ServerGetPeerAddress }

func (m GetPeerAddress) Encode() *Message {
	b := NewBuilder()
	b.WriteString(m.Username)
	return b.Message(uint32(ServerGetPeerAddress))
}

type PeerAddressResponse struct {
	Username string
	IP       net.IP
	Port     uint32
}

func (m *PeerAddressResponse) ServerCode() ServerCode { return ServerGetPeerAddress }

func readPeerAddressResponse(r *Reader) (*PeerAddressResponse, error) {
	m := &PeerAddressResponse{}
	var err error
	if m.Username, err = r.ReadString(); err != nil {
		return nil, err
	}
	ip, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	m.IP = net.IPv4(byte(ip>>24), byte(ip>>16), byte(ip>>8), byte(ip))
	if m.Port, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	return m, nil
}

// ConnectToPeer asks the server to broker an indirect peer connection.
type ConnectToPeer struct {
	Token    uint32
	Username string
	Type     string
}

func (m ConnectToPeer) ServerCode() ServerCode { return ServerConnectToPeer }

func (m ConnectToPeer) Encode() *Message {
	b := NewBuilder()
	b.WriteUint32(m.Token)
	b.WriteString(m.Username)
	b.WriteString(m.Type)
	return b.Message(uint32(ServerConnectToPeer))
}

func readConnectToPeer(r *Reader) (*ConnectToPeer, error) {
	m := &ConnectToPeer{}
	var err error
	if m.Token, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	if m.Username, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.Type, err = r.ReadString(); err != nil {
		return nil, err
	}
	return m, nil
}

// Ping keeps the server session alive.
type Ping struct{}

func (m Ping) ServerCode() ServerCode { return ServerPing }

func (m Ping) Encode() *Message {
	return NewBuilder().Message(uint32(ServerPing))
}

// RoomListRequest asks the server for its room directory.
type RoomListRequest struct{}

func (m RoomListRequest) ServerCode() ServerCode { return ServerRoomList }

func (m RoomListRequest) Encode() *Message {
	return NewBuilder().Message(uint32(ServerRoomList))
}

// RoomInfo is one row of the room list.
type RoomInfo struct {
	Name  string
	Users uint32
}

// RoomListResponse is the server's room directory: parallel name and
// user-count lists zipped by index, with optional private-room sections
// probed from the remaining byte count.
type RoomListResponse struct {
	Rooms        []RoomInfo
	OwnedPrivate []RoomInfo
	Private      []RoomInfo
	Operated     []string
}

func (m *RoomListResponse) ServerCode() ServerCode { return ServerRoomList }

func DecodeRoomListResponse(msg *Message) (*RoomListResponse, error) {
	if msg.Code != uint32(ServerRoomList) {
		return nil, &CodeMismatchError{Want: uint32(ServerRoomList), Got: msg.Code}
	}
	r := NewReader(msg.Payload)
	m, err := readRoomListResponse(r)
	if err != nil {
		return nil, &ReadError{Code: msg.Code, Remaining: r.Remaining(), Err: err}
	}
	return m, nil
}

func readRoomListResponse(r *Reader) (*RoomListResponse, error) {
	m := &RoomListResponse{}
	var err error

	if m.Rooms, err = readRoomInfoList(r); err != nil {
		return nil, err
	}
	if r.Remaining() > 0 {
		if m.OwnedPrivate, err = readRoomInfoList(r); err != nil {
			return nil, err
		}
	}
	if r.Remaining() > 0 {
		if m.Private, err = readRoomInfoList(r); err != nil {
			return nil, err
		}
	}
	if r.Remaining() > 0 {
		if m.Operated, err = readStringList(r); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func readRoomInfoList(r *Reader) ([]RoomInfo, error) {
	names, err := readStringList(r)
	if err != nil {
		return nil, err
	}
	countTotal, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if err := r.checkCount(countTotal, 4); err != nil {
		return nil, err
	}
	counts := make([]uint32, countTotal)
	for i := range counts {
		if counts[i], err = r.ReadUint32(); err != nil {
			return nil, err
		}
	}

	rooms := make([]RoomInfo, len(names))
	for i, name := range names {
		if i >= len(counts) {
			return nil, fmt.Errorf("room %d of %d missing a user count (counts=%d)", i, len(names), len(counts))
		}
		rooms[i] = RoomInfo{Name: name, Users: counts[i]}
	}
	return rooms, nil
}
