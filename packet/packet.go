package packet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// HeaderSize is the fixed size of every frame header on the wire
const HeaderSize = 16

var ErrTruncatedFrame = errors.New("packet: truncated frame")

type Protocol uint16

const (
	ProtocolCommand       = Protocol(0)
	ProtocolSpecial       = Protocol(1)
	ProtocolCommandZlib   = Protocol(2)
	ProtocolCommandBrotli = Protocol(3)
)

func (p Protocol) String() string {
	switch p {
	case ProtocolCommand:
		return "command"
	case ProtocolSpecial:
		return "special"
	case ProtocolCommandZlib:
		return "zlib"
	case ProtocolCommandBrotli:
		return "brotli"
	}
	return fmt.Sprintf("unknown(%d)", uint16(p))
}

type Type uint32

const (
	TypeHeartbeat       = Type(2)
	TypeHeartbeatResp   = Type(3)
	TypeCommand         = Type(5)
	TypeCertificate     = Type(7)
	TypeCertificateResp = Type(8)
)

func (t Type) String() string {
	switch t {
	case TypeHeartbeat:
		return "heartbeat"
	case TypeHeartbeatResp:
		return "heartbeat_resp"
	case TypeCommand:
		return "command"
	case TypeCertificate:
		return "certificate"
	case TypeCertificateResp:
		return "certificate_resp"
	}
	return fmt.Sprintf("unknown(%d)", uint32(t))
}

// Protover announced in the certificate, 3 asks the relay for brotli blocks
const ProtoverBrotli = 3

// Header is the 16 bytes big-endian frame header
type Header struct {
	TotalSize  uint32 `json:"total_size"`
	HeadSize   uint16 `json:"head_size"`
	Protocol   uint16 `json:"protocol"`
	PacketType uint32 `json:"packet_type"`
	Sequence   uint32 `json:"sequence"`
}

// BodySize is the declared body length, zero for malformed headers
func (h Header) BodySize() int {
	if h.TotalSize < HeaderSize {
		return 0
	}
	return int(h.TotalSize) - HeaderSize
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	putHeader(buf, h)
	return buf
}

func putHeader(buf []byte, h Header) {
	binary.BigEndian.PutUint32(buf[0:4], h.TotalSize)
	binary.BigEndian.PutUint16(buf[4:6], h.HeadSize)
	binary.BigEndian.PutUint16(buf[6:8], h.Protocol)
	binary.BigEndian.PutUint32(buf[8:12], h.PacketType)
	binary.BigEndian.PutUint32(buf[12:16], h.Sequence)
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, got %d", ErrTruncatedFrame, HeaderSize, len(b))
	}
	return Header{
		TotalSize:  binary.BigEndian.Uint32(b[0:4]),
		HeadSize:   binary.BigEndian.Uint16(b[4:6]),
		Protocol:   binary.BigEndian.Uint16(b[6:8]),
		PacketType: binary.BigEndian.Uint32(b[8:12]),
		Sequence:   binary.BigEndian.Uint32(b[12:16]),
	}, nil
}

// Encode builds header+body, total size is always len(body)+16
func Encode(protocol Protocol, packetType Type, body []byte) []byte {
	buf := make([]byte, HeaderSize+len(body))
	putHeader(buf, Header{
		TotalSize:  uint32(HeaderSize + len(body)),
		HeadSize:   HeaderSize,
		Protocol:   uint16(protocol),
		PacketType: uint32(packetType),
		Sequence:   1,
	})
	copy(buf[HeaderSize:], body)
	return buf
}

// Decode reads exactly one frame from the start of buf.
// The returned body never extends past the declared total size, so a frame
// concatenated after it starts at buf[header.TotalSize].
func Decode(buf []byte) (Header, []byte, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return Header{}, nil, err
	}
	if int(h.TotalSize) > len(buf) {
		return Header{}, nil, fmt.Errorf("%w: declared %d bytes, got %d", ErrTruncatedFrame, h.TotalSize, len(buf))
	}
	if h.HeadSize < HeaderSize || uint32(h.HeadSize) > h.TotalSize {
		return Header{}, nil, fmt.Errorf("%w: head size %d with total size %d", ErrTruncatedFrame, h.HeadSize, h.TotalSize)
	}
	return h, buf[h.HeadSize:h.TotalSize], nil
}

type CertificateBody struct {
	UID      uint64 `json:"uid"`
	RoomID   uint64 `json:"roomid"`
	Key      string `json:"key"`
	Protover uint8  `json:"protover"`
}

func NewCertificate(uid, roomID uint64, token string) ([]byte, error) {
	body, err := sonic.Marshal(&CertificateBody{
		UID:      uid,
		RoomID:   roomID,
		Key:      token,
		Protover: ProtoverBrotli,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal certificate body: %w", err)
	}
	return Encode(ProtocolSpecial, TypeCertificate, body), nil
}

// heartbeatBody is what the web player has always sent, the relay ignores it
var heartbeatBody = []byte("[object Object]")

func NewHeartbeat() []byte {
	return Encode(ProtocolSpecial, TypeHeartbeat, heartbeatBody)
}
