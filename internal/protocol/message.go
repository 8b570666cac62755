// Package protocol implements the binary message codec for the file-sharing
// network: a byte cursor over little-endian payloads, typed message records,
// and closed dispatch from message codes to decoders.
package protocol

// Message is one code-stripped protocol message. The transport frames it as
// length | code | payload, all little-endian.
type Message struct {
	Code    uint32
	Payload []byte
}

// ServerMessage is a decoded message from the central server.
type ServerMessage interface {
	ServerCode() ServerCode
}

// PeerMessage is a decoded message from a peer connection.
type PeerMessage interface {
	PeerCode() PeerCode
}

// DecodeServer dispatches an inbound server message to its record decoder.
// Codes without a catalog record yield UnknownCodeError; a malformed payload
// yields ReadError.
func DecodeServer(msg *Message) (ServerMessage, error) {
	r := NewReader(msg.Payload)

	var (
		m   ServerMessage
		err error
	)
	switch ServerCode(msg.Code) {
	case ServerLogin:
		m, err = readLoginResponse(r)
	case ServerGetPeerAddress:
		m, err = readPeerAddressResponse(r)
	case ServerSayInChatRoom:
		m, err = readRoomMessage(r)
	case ServerJoinRoom:
		m, err = readJoinRoomResponse(r)
	case ServerConnectToPeer:
		m, err = readConnectToPeer(r)
	case ServerLeaveRoom:
		m, err = readLeaveRoomResponse(r)
	case ServerRoomList:
		m, err = readRoomListResponse(r)
	default:
		return nil, &UnknownCodeError{Code: msg.Code}
	}
	if err != nil {
		return nil, &ReadError{Code: msg.Code, Remaining: r.Remaining(), Err: err}
	}
	return m, nil
}

// DecodePeer dispatches an inbound peer message to its record decoder.
func DecodePeer(msg *Message) (PeerMessage, error) {
	r := NewReader(msg.Payload)

	var (
		m   PeerMessage
		err error
	)
	switch PeerCode(msg.Code) {
	case PeerTransferRequest:
		m, err = readTransferRequest(r)
	case PeerTransferResponse:
		m, err = readTransferResponse(r)
	case PeerQueueDownload:
		m, err = readQueueDownload(r)
	case PeerPlaceInQueueResponse:
		m, err = readPlaceInQueueResponse(r)
	case PeerUploadFailed:
		m, err = readUploadFailed(r)
	case PeerUploadDenied:
		m, err = readUploadDenied(r)
	case PeerPlaceInQueueRequest:
		m, err = readPlaceInQueueRequest(r)
	default:
		return nil, &UnknownCodeError{Code: msg.Code}
	}
	if err != nil {
		return nil, &ReadError{Code: msg.Code, Remaining: r.Remaining(), Err: err}
	}
	return m, nil
}
