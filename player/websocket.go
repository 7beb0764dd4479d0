package player

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lxzan/gws"
)

var ErrNotConnected = errors.New("player: not connected")

type ClientConfig struct {
	ServerURL      string
	ReconnectDelay time.Duration
	MaxReconnects  int // -1 reconnects forever
	PongWait       time.Duration
}

// WebSocket is a Transport over a gws client connection.
type WebSocket struct {
	config *ClientConfig
	logger *slog.Logger

	mu             sync.Mutex
	conn           *gws.Conn
	disconnected   chan struct{}
	receiver       Receiver
	reconnectCount int

	stopChan chan struct{}
	stopOnce sync.Once
}

type wsEvents struct {
	ws *WebSocket
}

func NewWebSocket(config *ClientConfig, logger *slog.Logger) *WebSocket {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocket{
		config:   config,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// SetReceiver sets where inbound frames go.
func (w *WebSocket) SetReceiver(r Receiver) {
	w.mu.Lock()
	w.receiver = r
	w.mu.Unlock()
}

// Dial connects once and returns a Player bound to the new connection.
func Dial(name string, config *ClientConfig, opts ...Option) (*Player, *WebSocket, error) {
	p := New(name, nil, opts...)
	ws := NewWebSocket(config, p.logger)
	p.transport = ws
	ws.SetReceiver(p)

	if err := ws.Connect(); err != nil {
		return nil, nil, err
	}
	return p, ws, nil
}

// Connect dials the server and starts reading in the background.
func (w *WebSocket) Connect() error {
	w.logger.Info("connecting", "url", w.config.ServerURL)

	conn, _, err := gws.NewClient(&wsEvents{ws: w}, &gws.ClientOption{
		Addr: w.config.ServerURL,
		PermessageDeflate: gws.PermessageDeflate{
			Enabled:               true,
			ServerContextTakeover: true,
			ClientContextTakeover: true,
		},
	})
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.conn = conn
	w.disconnected = make(chan struct{})
	w.mu.Unlock()

	go conn.ReadLoop()

	w.logger.Info("connected")
	return nil
}

// Start keeps the connection up until Stop is called or MaxReconnects
// consecutive attempts fail.
func (w *WebSocket) Start() {
	for {
		select {
		case <-w.stopChan:
			return
		default:
		}

		if err := w.Connect(); err != nil {
			w.logger.Error("connect failed", "error", err)
			if !w.waitForReconnect() {
				return
			}
			continue
		}

		w.mu.Lock()
		w.reconnectCount = 0
		disconnected := w.disconnected
		w.mu.Unlock()

		select {
		case <-disconnected:
			w.logger.Info("disconnected")
		case <-w.stopChan:
			return
		}
	}
}

func (w *WebSocket) waitForReconnect() bool {
	w.mu.Lock()
	if w.config.MaxReconnects != -1 && w.reconnectCount >= w.config.MaxReconnects {
		w.mu.Unlock()
		w.logger.Error("max reconnects reached", "max", w.config.MaxReconnects)
		return false
	}
	w.reconnectCount++
	count := w.reconnectCount
	w.mu.Unlock()

	w.logger.Info("reconnecting", "delay", w.config.ReconnectDelay, "count", count)

	select {
	case <-time.After(w.config.ReconnectDelay):
		return true
	case <-w.stopChan:
		return false
	}
}

func (w *WebSocket) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil
}

// Send writes one text frame.
func (w *WebSocket) Send(text string) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteMessage(gws.OpcodeText, []byte(text))
}

func (w *WebSocket) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn != nil {
		_ = conn.WriteClose(1000, []byte("normal closure"))
	}
}

// touch pushes the read deadline out by PongWait; zero disables it.
func (e *wsEvents) touch(socket *gws.Conn) {
	if wait := e.ws.config.PongWait; wait > 0 {
		_ = socket.SetDeadline(time.Now().Add(wait))
	}
}

func (e *wsEvents) OnOpen(socket *gws.Conn) {
	e.touch(socket)
}

func (e *wsEvents) OnClose(socket *gws.Conn, err error) {
	w := e.ws
	w.mu.Lock()
	if w.conn == socket {
		w.conn = nil
		close(w.disconnected)
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("connection closed", "error", err)
	} else {
		w.logger.Info("connection closed")
	}
}

func (e *wsEvents) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.WritePong(payload)
	e.touch(socket)
}

func (e *wsEvents) OnPong(socket *gws.Conn, payload []byte) {
	e.touch(socket)
}

func (e *wsEvents) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	e.ws.mu.Lock()
	r := e.ws.receiver
	e.ws.mu.Unlock()

	if r == nil {
		return
	}
	if err := r.Handle(string(message.Bytes())); err != nil {
		e.ws.logger.Debug("frame rejected", "error", err)
	}
}
