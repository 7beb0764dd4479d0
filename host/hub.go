// Package host is the game-instance end of the protocol. A Hub accepts
// player WebSocket connections, feeds their keyboard and mouse messages to
// an input.Injector and routes their payloads and events to handlers.
package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Lysander66/gamecontroller/internal/input"
	"github.com/Lysander66/gamecontroller/internal/metrics"
	"github.com/Lysander66/gamecontroller/pkg/callback"
	"github.com/Lysander66/gamecontroller/pkg/message"
	"github.com/google/uuid"
	"github.com/lxzan/gws"
	"github.com/tidwall/gjson"
)

var ErrPlayerNotFound = errors.New("host: player not found")

// PlayerInfo describes one connected player.
type PlayerInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IP       string `json:"ip"`
	JoinTime string `json:"join_time"`
}

type session struct {
	info PlayerInfo
}

type Hub struct {
	name     string
	injector input.Injector
	logger   *slog.Logger
	metrics  *metrics.Metrics

	pingInterval time.Duration
	pongWait     time.Duration

	payloads *callback.Registry
	events   *callback.Registry

	upgrader *gws.Upgrader

	sessions     map[*gws.Conn]*session
	sessionsLock sync.RWMutex

	stopChan chan struct{}
	stopOnce sync.Once
}

type Option func(*Hub)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithKeepalive sets how often players are pinged and how long a silent
// connection may live.
func WithKeepalive(pingInterval, pongWait time.Duration) Option {
	return func(h *Hub) {
		h.pingInterval = pingInterval
		h.pongWait = pongWait
	}
}

// NewHub creates a hub that signs its outbound messages with name.
func NewHub(name string, injector input.Injector, opts ...Option) *Hub {
	h := &Hub{
		name:         name,
		injector:     injector,
		logger:       slog.Default(),
		pingInterval: 30 * time.Second,
		pongWait:     45 * time.Second,
		payloads:     callback.NewRegistry("payload"),
		events:       callback.NewRegistry("event"),
		sessions:     make(map[*gws.Conn]*session),
		stopChan:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.upgrader = gws.NewUpgrader(h, &gws.ServerOption{
		ParallelEnabled:   false, // frames from one player are handled in order
		Recovery:          gws.Recovery,
		PermessageDeflate: gws.PermessageDeflate{Enabled: true},
		Authorize: func(r *http.Request, session gws.SessionStorage) bool {
			session.Store("clientIP", getClientIP(r))
			return true
		},
	})

	go h.startPingTicker()
	return h
}

// ServeHTTP upgrades the request and reads from the socket until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	go func() {
		socket.ReadLoop()
	}()
}

// PlayersHandler serves the connected player list as JSON.
func (h *Hub) PlayersHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		players := h.Players()
		response := map[string]any{
			"players": players,
			"count":   len(players),
		}

		responseJSON, err := json.Marshal(response)
		if err != nil {
			h.logger.Error("failed to marshal player list", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(responseJSON)
	})
}

func (h *Hub) Players() []PlayerInfo {
	h.sessionsLock.RLock()
	defer h.sessionsLock.RUnlock()

	players := make([]PlayerInfo, 0, len(h.sessions))
	for _, s := range h.sessions {
		players = append(players, s.info)
	}
	return players
}

func (h *Hub) Close() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})

	for _, conn := range h.conns("") {
		_ = conn.WriteClose(1001, []byte("host shutting down"))
	}
}

// OnPayload registers handler for payloadType, replacing any earlier one.
// The handler is told which player sent the payload.
func (h *Hub) OnPayload(payloadType string, shape callback.Shape, handler callback.FromHandler) {
	h.payloads.RegisterFrom(payloadType, shape, handler)
}

// OnEvent registers handler for event, replacing any earlier one.
func (h *Hub) OnEvent(event string, shape callback.Shape, handler callback.FromHandler) {
	h.events.RegisterFrom(event, shape, handler)
}

// HandlePayload registers a typed handler for payloadType.
func HandlePayload[T any](h *Hub, payloadType string, fn func(player string, v T)) {
	h.OnPayload(payloadType, callback.Of[T](), func(player string, v any) {
		t, _ := v.(T)
		fn(player, t)
	})
}

// HandleEvent registers a typed handler for event.
func HandleEvent[T any](h *Hub, event string, fn func(player string, v T)) {
	h.OnEvent(event, callback.Of[T](), func(player string, v any) {
		t, _ := v.(T)
		fn(player, t)
	})
}

// SendPayload sends a payload to every connection of the named player.
func (h *Hub) SendPayload(player, payloadType string, payload any) error {
	m, err := message.NewPayload(h.name, payloadType, payload)
	if err != nil {
		return err
	}
	return h.sendTo(player, m)
}

func (h *Hub) SendEvent(player, event string, payload any) error {
	m, err := message.NewEvent(h.name, event, payload)
	if err != nil {
		return err
	}
	return h.sendTo(player, m)
}

func (h *Hub) BroadcastPayload(payloadType string, payload any) error {
	m, err := message.NewPayload(h.name, payloadType, payload)
	if err != nil {
		return err
	}
	return h.broadcast(m)
}

func (h *Hub) BroadcastEvent(event string, payload any) error {
	m, err := message.NewEvent(h.name, event, payload)
	if err != nil {
		return err
	}
	return h.broadcast(m)
}

func (h *Hub) sendTo(player string, m message.Message) error {
	frame, err := message.Encode(m)
	if err != nil {
		return err
	}

	var conns []*gws.Conn
	if player != "" {
		conns = h.conns(player)
	}
	if len(conns) == 0 {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, player)
	}

	var errs []error
	for _, conn := range conns {
		if err := conn.WriteMessage(gws.OpcodeText, []byte(frame)); err != nil {
			errs = append(errs, err)
			continue
		}
		h.metrics.FrameSent(m.Kind().String())
	}
	return errors.Join(errs...)
}

func (h *Hub) broadcast(m message.Message) error {
	frame, err := message.Encode(m)
	if err != nil {
		return err
	}

	for _, conn := range h.conns("") {
		if err := conn.WriteMessage(gws.OpcodeText, []byte(frame)); err == nil {
			h.metrics.FrameSent(m.Kind().String())
		}
	}
	return nil
}

// conns copies the matching connections so no lock is held while writing.
// An empty player matches every connection.
func (h *Hub) conns(player string) []*gws.Conn {
	h.sessionsLock.RLock()
	defer h.sessionsLock.RUnlock()

	conns := make([]*gws.Conn, 0, len(h.sessions))
	for conn, s := range h.sessions {
		if player == "" || s.info.Name == player {
			conns = append(conns, conn)
		}
	}
	return conns
}

func (h *Hub) OnOpen(socket *gws.Conn) {
	clientIP := MustLoad[string](socket.Session(), "clientIP")

	info := PlayerInfo{
		ID:       uuid.NewString(),
		IP:       clientIP,
		JoinTime: time.Now().Format("2006-01-02 15:04:05"),
	}

	h.sessionsLock.Lock()
	h.sessions[socket] = &session{info: info}
	h.sessionsLock.Unlock()

	h.logger.Info("player connected", "id", info.ID, "ip", clientIP)
	h.touch(socket)
}

func (h *Hub) OnClose(socket *gws.Conn, err error) {
	h.sessionsLock.Lock()
	s, exists := h.sessions[socket]
	if exists {
		delete(h.sessions, socket)
	}
	h.sessionsLock.Unlock()

	if exists {
		h.logger.Info("player disconnected", "id", s.info.ID, "name", s.info.Name, "error", err)
	}
}

func (h *Hub) OnPing(socket *gws.Conn, payload []byte) {
	h.touch(socket)
	_ = socket.WritePong(payload)
}

func (h *Hub) OnPong(socket *gws.Conn, payload []byte) {
	h.touch(socket)
}

func (h *Hub) OnMessage(socket *gws.Conn, msg *gws.Message) {
	defer msg.Close()

	h.touch(socket)
	_ = h.handleFrame(socket, string(msg.Bytes()))
}

func (h *Hub) touch(socket *gws.Conn) {
	if h.pongWait > 0 {
		_ = socket.SetDeadline(time.Now().Add(h.pongWait))
	}
}

// handleFrame decodes and dispatches one frame from socket. Any error is
// logged and affects only this frame.
func (h *Hub) handleFrame(socket *gws.Conn, frame string) error {
	msg, err := message.Decode(frame)
	if err != nil {
		h.drop(err, frame)
		return err
	}
	h.metrics.FrameReceived(msg.Kind().String())
	h.rememberName(socket, msg.PlayerName())

	switch m := msg.(type) {
	case *message.KeyboardMessage:
		err = h.handleKeyboard(m)
	case *message.MouseMessage:
		err = h.handleMouse(m)
	case *message.PayloadMessage:
		err = h.dispatch(h.payloads, m.Player, m.PayloadType, m.Payload)
	case *message.EventMessage:
		err = h.dispatch(h.events, m.Player, m.Event, m.Payload)
	}

	if err != nil {
		h.drop(err, frame)
	}
	return err
}

func (h *Hub) handleKeyboard(m *message.KeyboardMessage) error {
	var errs []error
	for _, action := range m.Actions {
		if err := h.injector.InjectKey(m.Player, action); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", errInject, errors.Join(errs...))
	}
	return nil
}

func (h *Hub) handleMouse(m *message.MouseMessage) error {
	if err := h.injector.InjectMouse(m.Player, m.Action, m.Position, m.Payload); err != nil {
		return fmt.Errorf("%w: %w", errInject, err)
	}
	return nil
}

var errInject = errors.New("host: inject failed")

func (h *Hub) dispatch(r *callback.Registry, sender, key, raw string) error {
	found, err := r.DispatchFrom(sender, key, raw)
	if !found {
		h.metrics.RoutingMiss(r.Name())
		return nil
	}
	if errors.Is(err, callback.ErrHandlerPanic) {
		h.metrics.HandlerPanic(r.Name())
	}
	return err
}

func (h *Hub) rememberName(socket *gws.Conn, name string) {
	if name == "" {
		return
	}

	h.sessionsLock.Lock()
	s, ok := h.sessions[socket]
	renamed := ok && s.info.Name != name
	if renamed {
		s.info.Name = name
	}
	h.sessionsLock.Unlock()

	if renamed {
		h.logger.Info("player identified", "id", s.info.ID, "name", name)
	}
}

func (h *Hub) drop(err error, frame string) {
	reason := metrics.ReasonMalformed
	switch {
	case errors.Is(err, message.ErrUnknownMessageKind):
		reason = metrics.ReasonUnknownKind
	case errors.Is(err, message.ErrPayloadDecode):
		reason = metrics.ReasonPayloadDecode
	case errors.Is(err, callback.ErrHandlerPanic):
		reason = metrics.ReasonHandlerPanic
	case errors.Is(err, errInject):
		reason = metrics.ReasonInject
	}
	h.metrics.FrameDropped(reason)

	// Best effort context for the log line; the frame may not be valid JSON.
	body := strings.TrimLeft(frame, "0123456789")
	h.logger.Error("dropping frame", "error", err, "reason", reason,
		"player", gjson.Get(body, "player").String(),
		"payloadType", gjson.Get(body, "payloadType").String(),
		"event", gjson.Get(body, "event").String())
}

func (h *Hub) startPingTicker() {
	if h.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case <-ticker.C:
			conns := h.conns("")
			h.logger.Debug("pinging players", "count", len(conns))
			for _, conn := range conns {
				_ = conn.WritePing(nil)
			}
		}
	}
}

func MustLoad[T any](session gws.SessionStorage, key string) (v T) {
	if value, exist := session.Load(key); exist {
		v, _ = value.(T)
	}
	return
}

func getClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.Split(ip, ",")[0]
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
