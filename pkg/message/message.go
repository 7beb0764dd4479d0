package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

type Codec interface {
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

type Message interface {
	Codec
	Kind() Kind
	PlayerName() string
}

type BaseMessage struct {
	Player string `json:"player"`
}

func (m *BaseMessage) PlayerName() string {
	return m.Player
}

// Kind identifies which record a frame carries. Its numeric value is the
// wire discriminator; peers decode by number, so values must never change.
type Kind uint8

const (
	KindKeyboard Kind = 0
	KindMouse    Kind = 1
	KindPayload  Kind = 2
	KindEvent    Kind = 3
)

var discriminators = map[Kind]string{
	KindKeyboard: "0",
	KindMouse:    "1",
	KindPayload:  "2",
	KindEvent:    "3",
}

func (k Kind) String() string {
	switch k {
	case KindKeyboard:
		return "KEYBOARD"
	case KindMouse:
		return "MOUSE"
	case KindPayload:
		return "PAYLOAD"
	case KindEvent:
		return "EVENT"
	default:
		return "UNKNOWN"
	}
}

// Discriminator returns the frame prefix for k.
func (k Kind) Discriminator() (string, bool) {
	d, ok := discriminators[k]
	return d, ok
}

var (
	ErrProtocol           = errors.New("message: protocol error")
	ErrUnknownMessageKind = fmt.Errorf("%w: unknown message kind", ErrProtocol)
	ErrMalformedFrame     = fmt.Errorf("%w: malformed frame", ErrProtocol)
	ErrPayloadEncode      = fmt.Errorf("%w: payload encode error", ErrProtocol)
	ErrPayloadDecode      = fmt.Errorf("%w: payload decode error", ErrProtocol)
)

// Encode renders m as one text frame: the kind discriminator immediately
// followed by the JSON document of the record.
func Encode(m Message) (string, error) {
	prefix, ok := m.Kind().Discriminator()
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownMessageKind, m.Kind())
	}

	body, err := m.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s message: %w", m.Kind(), err)
	}
	return prefix + string(body), nil
}

// Decode parses one text frame produced by Encode.
func Decode(frame string) (Message, error) {
	if frame == "" {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformedFrame)
	}

	n := 0
	for n < len(frame) && frame[n] >= '0' && frame[n] <= '9' {
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: missing discriminator", ErrUnknownMessageKind)
	}

	ordinal, err := strconv.ParseUint(frame[:n], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageKind, frame[:n])
	}

	kind := Kind(ordinal)
	if d, ok := kind.Discriminator(); !ok || d != frame[:n] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageKind, frame[:n])
	}
	msg := NewMessage(kind)

	body := frame[n:]
	if len(body) == 0 || body[0] != '{' {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrMalformedFrame)
	}
	if err = msg.Unmarshal([]byte(body)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return msg, nil
}

// NewMessage returns an empty record for kind, or nil if kind is unknown.
func NewMessage(kind Kind) Message {
	switch kind {
	case KindKeyboard:
		return &KeyboardMessage{}
	case KindMouse:
		return &MouseMessage{}
	case KindPayload:
		return &PayloadMessage{}
	case KindEvent:
		return &EventMessage{}
	default:
		return nil
	}
}

// marshalPayload encodes an application payload into its own JSON document.
func marshalPayload(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPayloadEncode, err)
	}
	return string(data), nil
}
