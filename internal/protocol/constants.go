package protocol

// ServerCode identifies a message exchanged with the central server.
type ServerCode uint32

const (
	ServerLogin          ServerCode = 1
	ServerGetPeerAddress ServerCode = 3
	ServerSayInChatRoom  ServerCode = 13
	ServerJoinRoom       ServerCode = 14
	ServerLeaveRoom      ServerCode = 15
	ServerConnectToPeer  ServerCode = 18
	ServerFileSearch     ServerCode = 26
	ServerPing           ServerCode = 32
	ServerRoomList       ServerCode = 64
)

func (c ServerCode) String() string {
	switch c {
	case ServerLogin:
		return "LOGIN"
	case ServerGetPeerAddress:
		return "GET_PEER_ADDRESS"
	case ServerSayInChatRoom:
		return "SAY_IN_CHAT_ROOM"
	case ServerJoinRoom:
		return "JOIN_ROOM"
	case ServerLeaveRoom:
		return "LEAVE_ROOM"
	case ServerConnectToPeer:
		return "CONNECT_TO_PEER"
	case ServerFileSearch:
		return "FILE_SEARCH"
	case ServerPing:
		return "PING"
	case ServerRoomList:
		return "ROOM_LIST"
	default:
		return "UNKNOWN"
	}
}

// PeerCode identifies a message exchanged directly with another peer.
type PeerCode uint32

const (
	PeerTransferRequest      PeerCode = 40
	PeerTransferResponse     PeerCode = 41
	PeerQueueDownload        PeerCode = 43
	PeerPlaceInQueueResponse PeerCode = 44
	PeerUploadFailed         PeerCode = 46
	PeerUploadDenied         PeerCode = 50
	PeerPlaceInQueueRequest  PeerCode = 51
)

func (c PeerCode) String() string {
	switch c {
	case PeerTransferRequest:
		return "TRANSFER_REQUEST"
	case PeerTransferResponse:
		return "TRANSFER_RESPONSE"
	case PeerQueueDownload:
		return "QUEUE_DOWNLOAD"
	case PeerPlaceInQueueResponse:
		return "PLACE_IN_QUEUE_RESPONSE"
	case PeerUploadFailed:
		return "UPLOAD_FAILED"
	case PeerUploadDenied:
		return "UPLOAD_DENIED"
	case PeerPlaceInQueueRequest:
		return "PLACE_IN_QUEUE_REQUEST"
	default:
		return "UNKNOWN"
	}
}

// UserStatus is the online status reported for a room user.
type UserStatus uint32

const (
	StatusOffline UserStatus = 0
	StatusAway    UserStatus = 1
	StatusOnline  UserStatus = 2
)

func (s UserStatus) String() string {
	switch s {
	case StatusOffline:
		return "OFFLINE"
	case StatusAway:
		return "AWAY"
	case StatusOnline:
		return "ONLINE"
	default:
		return "UNKNOWN"
	}
}

// TransferRequest directions on the wire.
const (
	DirectionDownload uint32 = 0
	DirectionUpload   uint32 = 1
)
