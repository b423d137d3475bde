package message

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

type RoomIDKind uint8

const (
	RoomIDAbsent = RoomIDKind(iota)
	RoomIDNumber
	RoomIDString
)

// RoomID keeps the relay's roomid as it was sent, LIVE carries a number
// while PREPARING carries a string
type RoomID struct {
	Kind   RoomIDKind
	Number uint64
	String string
}

func (r RoomID) AsNumber() (uint64, bool) {
	return r.Number, r.Kind == RoomIDNumber
}

func (r RoomID) AsString() (string, bool) {
	return r.String, r.Kind == RoomIDString
}

func parseRoomID(res gjson.Result) (RoomID, error) {
	switch res.Type {
	case gjson.Null:
		return RoomID{}, nil
	case gjson.Number:
		n, err := strconv.ParseUint(res.Raw, 10, 64)
		if err != nil {
			return RoomID{}, fmt.Errorf("%w: roomid %s", ErrEnvelopeShape, res.Raw)
		}
		return RoomID{Kind: RoomIDNumber, Number: n}, nil
	case gjson.String:
		return RoomID{Kind: RoomIDString, String: res.Str}, nil
	}
	return RoomID{}, fmt.Errorf("%w: roomid %s", ErrEnvelopeShape, res.Raw)
}

// Envelope is the raw command object inside a command frame. Only cmd is
// checked here, roomid, msg and info are decoded by the commands reading them.
type Envelope struct {
	Cmd    string
	RoomID gjson.Result
	Msg    gjson.Result
	Info   gjson.Result
	Data   gjson.Result
	Raw    []byte
}

// Room decodes roomid, Kind is RoomIDAbsent when it is missing or null
func (e *Envelope) Room() (RoomID, error) {
	return parseRoomID(e.RoomID)
}

// Message is msg as a string, ok is false when it is missing
func (e *Envelope) Message() (msg string, ok bool, err error) {
	switch e.Msg.Type {
	case gjson.Null:
		return "", false, nil
	case gjson.String:
		return e.Msg.Str, true, nil
	}
	return "", false, fmt.Errorf("%w: msg is %s", ErrEnvelopeShape, e.Msg.Type.String())
}

// ParseEnvelope validates one command body and splits out the fields
// every command shares. Extraction of the payload is left to Parse.
func ParseEnvelope(body []byte) (*Envelope, error) {
	if !utf8.Valid(body) {
		return nil, ErrInvalidUTF8
	}
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: not an object", ErrEnvelopeShape)
	}
	cmd := root.Get("cmd")
	if cmd.Type != gjson.String {
		return nil, fmt.Errorf("%w: cmd is %s", ErrEnvelopeShape, cmd.Type.String())
	}
	return &Envelope{
		Cmd:    cmd.Str,
		RoomID: root.Get("roomid"),
		Msg:    root.Get("msg"),
		Info:   root.Get("info"),
		Data:   root.Get("data"),
		Raw:    body,
	}, nil
}
