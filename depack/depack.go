package depack

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/message"
	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/packet"
	"github.com/andybalholm/brotli"
	"github.com/tidwall/gjson"
	"k8s.io/klog/v2"
)

var (
	ErrInvalidProtocol    = errors.New("depack: invalid protocol")
	ErrUnimplementedCodec = errors.New("depack: unimplemented codec")
	ErrDecompress         = errors.New("depack: decompress failed")
	ErrInvalidType        = errors.New("depack: invalid packet type")
	ErrHeartbeatBody      = errors.New("depack: heartbeat response body too short")
)

// Result is what one frame carries, one of CertificateAck, HeartbeatAck or LiveEvents
type Result interface {
	isResult()
}

type CertificateAck struct {
	Code int64
}

// HeartbeatAck carries the counter the relay sends back, historically the room popularity
type HeartbeatAck struct {
	Count uint32
}

type LiveEvents struct {
	Commands []Command
}

// Command is one envelope and what the message model made of it.
// Err is set for commands that were dropped, the other commands of the same
// frame are unaffected.
type Command struct {
	Cmd   string
	Event message.Event
	Err   error
}

func (CertificateAck) isResult() {}
func (HeartbeatAck) isResult()   {}
func (LiveEvents) isResult()     {}

// Frame is one inner frame split out of a decompressed block
type Frame struct {
	Header packet.Header
	Body   []byte
}

// Depack resolves one received frame
func Depack(h packet.Header, body []byte) (Result, error) {
	switch packet.Protocol(h.Protocol) {
	case packet.ProtocolCommand, packet.ProtocolSpecial:
		return resolvePlain(h, body)
	case packet.ProtocolCommandBrotli:
		data, err := Decompress(body)
		if err != nil {
			return nil, err
		}
		return resolveBlock(data)
	case packet.ProtocolCommandZlib:
		return nil, fmt.Errorf("%w: %s", ErrUnimplementedCodec, packet.ProtocolCommandZlib)
	}
	return nil, fmt.Errorf("%w: %d", ErrInvalidProtocol, h.Protocol)
}

// DepackBytes decodes the outer frame first
func DepackBytes(data []byte) (packet.Header, Result, error) {
	h, body, err := packet.Decode(data)
	if err != nil {
		return h, nil, err
	}
	res, err := Depack(h, body)
	return h, res, err
}

func Decompress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, brotli.NewReader(bytes.NewReader(body))); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecompress, err.Error())
	}
	return buf.Bytes(), nil
}

func resolvePlain(h packet.Header, body []byte) (Result, error) {
	switch packet.Type(h.PacketType) {
	case packet.TypeCertificateResp:
		return CertificateAck{Code: gjson.GetBytes(body, "code").Int()}, nil
	case packet.TypeHeartbeatResp:
		if len(body) < 4 {
			return nil, fmt.Errorf("%w: %d bytes", ErrHeartbeatBody, len(body))
		}
		return HeartbeatAck{Count: binary.BigEndian.Uint32(body[:4])}, nil
	case packet.TypeCommand:
		return LiveEvents{Commands: []Command{resolveCommand(body)}}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrInvalidType, h.PacketType)
}

// resolveBlock walks the concatenated frames of a decompressed block
func resolveBlock(data []byte) (Result, error) {
	frames, _, err := SplitFrames(data)
	if err != nil {
		return nil, err
	}
	events := LiveEvents{Commands: make([]Command, 0, len(frames))}
	for _, f := range frames {
		if packet.Protocol(f.Header.Protocol) != packet.ProtocolCommand {
			klog.V(4).Infof("ignored inner frame with protocol %s", packet.Protocol(f.Header.Protocol))
			continue
		}
		events.Commands = append(events.Commands, resolveCommand(f.Body))
	}
	return events, nil
}

// SplitFrames decodes back to back frames until data is exhausted, consumed
// is the sum of every frame's total size. Any broken frame fails the whole
// block, nothing is returned partially.
func SplitFrames(data []byte) ([]Frame, int, error) {
	var frames []Frame
	offset := 0
	for offset < len(data) {
		h, body, err := packet.Decode(data[offset:])
		if err != nil {
			return nil, offset, fmt.Errorf("inner frame at offset %d: %w", offset, err)
		}
		frames = append(frames, Frame{Header: h, Body: body})
		offset += int(h.TotalSize)
	}
	return frames, offset, nil
}

func resolveCommand(body []byte) Command {
	cmd, event, err := message.ParseBody(body)
	return Command{Cmd: cmd, Event: event, Err: err}
}
