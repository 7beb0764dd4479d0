package message

import (
	"encoding/json"
	"reflect"
)

// KeyAction is what happens to a key.
type KeyAction string

const (
	KeyPressed  KeyAction = "PRESSED"
	KeyReleased KeyAction = "RELEASED"
	KeyClicked  KeyAction = "CLICKED"
)

func (a KeyAction) Valid() bool {
	switch a {
	case KeyPressed, KeyReleased, KeyClicked:
		return true
	}
	return false
}

// MouseAction is what happens to the mouse.
type MouseAction string

const (
	MousePressed  MouseAction = "PRESSED"
	MouseReleased MouseAction = "RELEASED"
	MouseClicked  MouseAction = "CLICKED"
	MouseMoved    MouseAction = "MOVED"
)

func (a MouseAction) Valid() bool {
	switch a {
	case MousePressed, MouseReleased, MouseClicked, MouseMoved:
		return true
	}
	return false
}

// MousePositionType tells whether x/y are screen coordinates or a delta.
type MousePositionType string

const (
	PositionAbsolute MousePositionType = "ABSOLUTE"
	PositionRelative MousePositionType = "RELATIVE"
)

func (t MousePositionType) Valid() bool {
	return t == PositionAbsolute || t == PositionRelative
}

// Action is one key operation. Payload is nil when the sender attached none.
type Action struct {
	Action  KeyAction `json:"action"`
	Key     string    `json:"key"`
	Payload *string   `json:"payload"`
}

// KeyboardMessage 键盘消息
type KeyboardMessage struct {
	BaseMessage
	Actions []Action `json:"actions"`
}

// NewKeyboard builds one action per key, all sharing action and payload.
// A nil payload, typed or not, is stored as absent rather than serialized.
func NewKeyboard(player string, action KeyAction, payload any, keys ...string) (*KeyboardMessage, error) {
	var payloadString *string
	if !isNil(payload) {
		s, err := marshalPayload(payload)
		if err != nil {
			return nil, err
		}
		payloadString = &s
	}

	m := &KeyboardMessage{
		BaseMessage: BaseMessage{Player: player},
		Actions:     make([]Action, 0, len(keys)),
	}
	for _, key := range keys {
		m.Actions = append(m.Actions, Action{Action: action, Key: key, Payload: payloadString})
	}
	return m, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func (m *KeyboardMessage) Kind() Kind {
	return KindKeyboard
}

func (m *KeyboardMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

func (m *KeyboardMessage) Unmarshal(data []byte) error {
	return json.Unmarshal(data, m)
}

type Position struct {
	Type MousePositionType `json:"type"`
	X    int               `json:"x"`
	Y    int               `json:"y"`
}

// MouseMessage 鼠标消息
type MouseMessage struct {
	BaseMessage
	Action   MouseAction `json:"action"`
	Position Position    `json:"position"`
	Payload  string      `json:"payload"`
}

// NewMouse always serializes payload, so a nil payload travels as "null".
func NewMouse(player string, action MouseAction, positionType MousePositionType, x, y int, payload any) (*MouseMessage, error) {
	s, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return &MouseMessage{
		BaseMessage: BaseMessage{Player: player},
		Action:      action,
		Position:    Position{Type: positionType, X: x, Y: y},
		Payload:     s,
	}, nil
}

func (m *MouseMessage) Kind() Kind {
	return KindMouse
}

func (m *MouseMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

func (m *MouseMessage) Unmarshal(data []byte) error {
	return json.Unmarshal(data, m)
}

// PayloadMessage 应用负载消息
type PayloadMessage struct {
	BaseMessage
	PayloadType string `json:"payloadType"`
	Payload     string `json:"payload"`
}

func NewPayload(player, payloadType string, payload any) (*PayloadMessage, error) {
	s, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return &PayloadMessage{
		BaseMessage: BaseMessage{Player: player},
		PayloadType: payloadType,
		Payload:     s,
	}, nil
}

func (m *PayloadMessage) Kind() Kind {
	return KindPayload
}

func (m *PayloadMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

func (m *PayloadMessage) Unmarshal(data []byte) error {
	return json.Unmarshal(data, m)
}

// EventMessage 事件消息
type EventMessage struct {
	BaseMessage
	Event   string `json:"event"`
	Payload string `json:"payload"`
}

func NewEvent(player, event string, payload any) (*EventMessage, error) {
	s, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return &EventMessage{
		BaseMessage: BaseMessage{Player: player},
		Event:       event,
		Payload:     s,
	}, nil
}

func (m *EventMessage) Kind() Kind {
	return KindEvent
}

func (m *EventMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

func (m *EventMessage) Unmarshal(data []byte) error {
	return json.Unmarshal(data, m)
}
