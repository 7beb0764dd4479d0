// Package player is the remote-controller side of the protocol. A Player
// encodes keyboard, mouse, payload and event messages onto a Transport and
// routes inbound payloads and events to registered handlers.
package player

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lysander66/gamecontroller/internal/metrics"
	"github.com/Lysander66/gamecontroller/pkg/callback"
	"github.com/Lysander66/gamecontroller/pkg/message"
)

// Transport delivers one complete text frame per call.
type Transport interface {
	Send(text string) error
}

// Receiver consumes inbound text frames.
type Receiver interface {
	Handle(frame string) error
}

type Player struct {
	name      string
	transport Transport
	payloads  *callback.Registry
	events    *callback.Registry
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Player)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Player) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Player) {
		p.metrics = m
	}
}

func New(name string, transport Transport, opts ...Option) *Player {
	p := &Player{
		name:      name,
		transport: transport,
		payloads:  callback.NewRegistry("payload"),
		events:    callback.NewRegistry("event"),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("player", name)
	return p
}

func (p *Player) Name() string {
	return p.name
}

func (p *Player) PressKeys(keys ...string) error {
	return p.ExecuteKeyAction(message.KeyPressed, nil, keys...)
}

func (p *Player) PressKeysWith(payload any, keys ...string) error {
	return p.ExecuteKeyAction(message.KeyPressed, payload, keys...)
}

func (p *Player) ReleaseKeys(keys ...string) error {
	return p.ExecuteKeyAction(message.KeyReleased, nil, keys...)
}

func (p *Player) ReleaseKeysWith(payload any, keys ...string) error {
	return p.ExecuteKeyAction(message.KeyReleased, payload, keys...)
}

func (p *Player) ClickKeys(keys ...string) error {
	return p.ExecuteKeyAction(message.KeyClicked, nil, keys...)
}

func (p *Player) ClickKeysWith(payload any, keys ...string) error {
	return p.ExecuteKeyAction(message.KeyClicked, payload, keys...)
}

// ExecuteKeyAction sends one keyboard message with an action per key.
func (p *Player) ExecuteKeyAction(action message.KeyAction, payload any, keys ...string) error {
	m, err := message.NewKeyboard(p.name, action, payload, keys...)
	if err != nil {
		return err
	}
	return p.send(m)
}

func (p *Player) PressMouse(positionType message.MousePositionType, x, y int, payload any) error {
	return p.ExecuteMouseAction(message.MousePressed, positionType, x, y, payload)
}

func (p *Player) ReleaseMouse(positionType message.MousePositionType, x, y int, payload any) error {
	return p.ExecuteMouseAction(message.MouseReleased, positionType, x, y, payload)
}

func (p *Player) ClickMouse(positionType message.MousePositionType, x, y int, payload any) error {
	return p.ExecuteMouseAction(message.MouseClicked, positionType, x, y, payload)
}

func (p *Player) MoveMouse(positionType message.MousePositionType, x, y int, payload any) error {
	return p.ExecuteMouseAction(message.MouseMoved, positionType, x, y, payload)
}

func (p *Player) ExecuteMouseAction(action message.MouseAction, positionType message.MousePositionType, x, y int, payload any) error {
	m, err := message.NewMouse(p.name, action, positionType, x, y, payload)
	if err != nil {
		return err
	}
	return p.send(m)
}

// SendPayload sends payload under an application chosen routing key.
func (p *Player) SendPayload(payloadType string, payload any) error {
	m, err := message.NewPayload(p.name, payloadType, payload)
	if err != nil {
		return err
	}
	return p.send(m)
}

func (p *Player) SendEvent(event string, payload any) error {
	m, err := message.NewEvent(p.name, event, payload)
	if err != nil {
		return err
	}
	return p.send(m)
}

func (p *Player) send(m message.Message) error {
	frame, err := message.Encode(m)
	if err != nil {
		return err
	}
	if err = p.transport.Send(frame); err != nil {
		return fmt.Errorf("failed to send %s message: %w", m.Kind(), err)
	}
	p.metrics.FrameSent(m.Kind().String())
	return nil
}

// OnPayload registers handler for payloadType, replacing any earlier one.
func (p *Player) OnPayload(payloadType string, shape callback.Shape, handler callback.Handler) {
	p.payloads.Register(payloadType, shape, handler)
}

// OnEvent registers handler for event, replacing any earlier one.
func (p *Player) OnEvent(event string, shape callback.Shape, handler callback.Handler) {
	p.events.Register(event, shape, handler)
}

// HandlePayload registers a typed handler for payloadType.
func HandlePayload[T any](p *Player, payloadType string, fn func(T)) {
	p.OnPayload(payloadType, callback.Of[T](), func(v any) {
		t, _ := v.(T)
		fn(t)
	})
}

// HandleEvent registers a typed handler for event.
func HandleEvent[T any](p *Player, event string, fn func(T)) {
	p.OnEvent(event, callback.Of[T](), func(v any) {
		t, _ := v.(T)
		fn(t)
	})
}

// Handle decodes one inbound frame and dispatches it. Errors concern only
// this frame; they are logged and returned, and the Player stays usable.
func (p *Player) Handle(frame string) error {
	msg, err := message.Decode(frame)
	if err != nil {
		p.drop(err)
		return err
	}
	p.metrics.FrameReceived(msg.Kind().String())

	switch m := msg.(type) {
	case *message.PayloadMessage:
		err = p.processPayload(m)
	case *message.EventMessage:
		err = p.processEvent(m)
	default:
		p.logger.Debug("ignoring input message", "kind", msg.Kind(), "from", msg.PlayerName())
	}

	if err != nil {
		p.drop(err)
	}
	return err
}

func (p *Player) processPayload(m *message.PayloadMessage) error {
	return p.dispatch(p.payloads, m.PayloadType, m.Payload)
}

func (p *Player) processEvent(m *message.EventMessage) error {
	return p.dispatch(p.events, m.Event, m.Payload)
}

func (p *Player) dispatch(r *callback.Registry, key, raw string) error {
	found, err := r.Dispatch(key, raw)
	if !found {
		p.metrics.RoutingMiss(r.Name())
		p.logger.Debug("no handler registered", "registry", r.Name(), "key", key)
		return nil
	}
	if errors.Is(err, callback.ErrHandlerPanic) {
		p.metrics.HandlerPanic(r.Name())
	}
	return err
}

func (p *Player) drop(err error) {
	p.metrics.FrameDropped(DropReason(err))
	p.logger.Error("dropping frame", "error", err)
}

// DropReason maps a per-frame error to a metrics label.
func DropReason(err error) string {
	switch {
	case errors.Is(err, message.ErrUnknownMessageKind):
		return metrics.ReasonUnknownKind
	case errors.Is(err, message.ErrPayloadDecode):
		return metrics.ReasonPayloadDecode
	case errors.Is(err, callback.ErrHandlerPanic):
		return metrics.ReasonHandlerPanic
	default:
		return metrics.ReasonMalformed
	}
}
