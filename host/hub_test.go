package host

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Lysander66/gamecontroller/internal/metrics"
	"github.com/Lysander66/gamecontroller/pkg/callback"
	"github.com/Lysander66/gamecontroller/pkg/message"
	"github.com/Lysander66/gamecontroller/player"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type keyPress struct {
	player string
	action message.Action
}

type mousePress struct {
	player  string
	action  message.MouseAction
	pos     message.Position
	payload string
}

type recordingInjector struct {
	mu    sync.Mutex
	keys  []keyPress
	mouse []mousePress
	err   error
}

func (r *recordingInjector) InjectKey(player string, action message.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.keys = append(r.keys, keyPress{player, action})
	return nil
}

func (r *recordingInjector) InjectMouse(player string, action message.MouseAction, pos message.Position, payload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.mouse = append(r.mouse, mousePress{player, action, pos, payload})
	return nil
}

func (r *recordingInjector) keyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

func newTestHub(inj *recordingInjector, opts ...Option) *Hub {
	opts = append([]Option{WithLogger(quiet), WithKeepalive(0, 0)}, opts...)
	return NewHub("server", inj, opts...)
}

func encode(t *testing.T, m message.Message) string {
	t.Helper()
	frame, err := message.Encode(m)
	require.NoError(t, err)
	return frame
}

func TestHub_KeyboardAndMouseReachInjector(t *testing.T) {
	inj := &recordingInjector{}
	h := newTestHub(inj)
	defer h.Close()

	kb, err := message.NewKeyboard("alice", message.KeyPressed, nil, "W", "A")
	require.NoError(t, err)
	require.NoError(t, h.handleFrame(nil, encode(t, kb)))

	mouse, err := message.NewMouse("alice", message.MouseClicked, message.PositionAbsolute, 100, 200, nil)
	require.NoError(t, err)
	require.NoError(t, h.handleFrame(nil, encode(t, mouse)))

	require.Len(t, inj.keys, 2)
	assert.Equal(t, "alice", inj.keys[0].player)
	assert.Equal(t, "W", inj.keys[0].action.Key)
	assert.Equal(t, "A", inj.keys[1].action.Key)
	assert.Nil(t, inj.keys[1].action.Payload)

	require.Len(t, inj.mouse, 1)
	assert.Equal(t, mousePress{"alice", message.MouseClicked, message.Position{Type: message.PositionAbsolute, X: 100, Y: 200}, "null"}, inj.mouse[0])
}

func TestHub_InjectFailureIsContained(t *testing.T) {
	reg := prometheus.NewRegistry()
	inj := &recordingInjector{err: errors.New("no display")}
	h := newTestHub(inj, WithMetrics(metrics.New(metrics.WithRegistry(reg))))
	defer h.Close()

	kb, err := message.NewKeyboard("alice", message.KeyPressed, nil, "W")
	require.NoError(t, err)
	err = h.handleFrame(nil, encode(t, kb))
	assert.ErrorIs(t, err, errInject)

	inj.err = nil
	require.NoError(t, h.handleFrame(nil, encode(t, kb)))
	assert.Equal(t, 1, inj.keyCount())

	n, err := testutil.GatherAndCount(reg, "gamecontroller_frames_dropped_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHub_RoutesPayloadsAndEvents(t *testing.T) {
	h := newTestHub(&recordingInjector{})
	defer h.Close()

	type item struct {
		ItemID int `json:"itemId"`
	}
	var gotItems []item
	var gotFrom []string
	HandlePayload(h, "inventory", func(player string, v item) {
		gotFrom = append(gotFrom, player)
		gotItems = append(gotItems, v)
	})
	deaths := 0
	h.OnEvent("death", callback.None, func(string, any) { deaths++ })

	pm, err := message.NewPayload("alice", "inventory", item{ItemID: 7})
	require.NoError(t, err)
	require.NoError(t, h.handleFrame(nil, encode(t, pm)))

	em, err := message.NewEvent("bob", "death", nil)
	require.NoError(t, err)
	require.NoError(t, h.handleFrame(nil, encode(t, em)))

	miss, err := message.NewEvent("bob", "respawn", nil)
	require.NoError(t, err)
	require.NoError(t, h.handleFrame(nil, encode(t, miss)))

	assert.Equal(t, []item{{ItemID: 7}}, gotItems)
	assert.Equal(t, []string{"alice"}, gotFrom)
	assert.Equal(t, 1, deaths)
}

func TestHub_BadFramesAreDropped(t *testing.T) {
	h := newTestHub(&recordingInjector{})
	defer h.Close()

	HandleEvent(h, "score", func(string, int) {})

	err := h.handleFrame(nil, `9{"player":"alice"}`)
	assert.ErrorIs(t, err, message.ErrUnknownMessageKind)

	err = h.handleFrame(nil, `3{"player":"alice","event":"score","payload":"\"ten\""}`)
	assert.ErrorIs(t, err, message.ErrPayloadDecode)

	err = h.handleFrame(nil, `not a frame`)
	assert.ErrorIs(t, err, message.ErrProtocol)
}

func TestHub_SendToUnknownPlayer(t *testing.T) {
	h := newTestHub(&recordingInjector{})
	defer h.Close()

	err := h.SendEvent("nobody", "death", nil)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	err = h.SendPayload("", "inventory", nil)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	err = h.SendPayload("nobody", "inventory", make(chan int))
	assert.ErrorIs(t, err, message.ErrPayloadEncode)

	assert.NoError(t, h.BroadcastEvent("tick", 1))
}

func TestHub_EndToEnd(t *testing.T) {
	inj := &recordingInjector{}
	h := newTestHub(inj)
	defer h.Close()

	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	mux.Handle("/api/players", h.PlayersHandler())
	srv := httptest.NewServer(mux)
	defer srv.Close()

	type item struct {
		ItemID int `json:"itemId"`
	}
	received := make(chan item, 1)
	HandlePayload(h, "inventory", func(player string, v item) {
		if player == "alice" {
			received <- v
		}
	})

	p, ws, err := player.Dial("alice", &player.ClientConfig{
		ServerURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}, player.WithLogger(quiet))
	require.NoError(t, err)
	defer ws.Stop()

	deaths := make(chan any, 1)
	p.OnEvent("death", callback.None, func(v any) { deaths <- v })

	require.NoError(t, p.SendPayload("inventory", item{ItemID: 7}))
	select {
	case v := <-received:
		assert.Equal(t, item{ItemID: 7}, v)
	case <-time.After(2 * time.Second):
		t.Fatal("host never received the payload")
	}

	require.NoError(t, p.PressKeys("W", "A"))
	assert.Eventually(t, func() bool { return inj.keyCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, h.SendEvent("alice", "death", nil))
	select {
	case v := <-deaths:
		assert.Nil(t, v)
	case <-time.After(2 * time.Second):
		t.Fatal("player never received the event")
	}

	resp, err := http.Get(srv.URL + "/api/players")
	require.NoError(t, err)
	defer resp.Body.Close()

	var list struct {
		Players []PlayerInfo `json:"players"`
		Count   int          `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "alice", list.Players[0].Name)
	assert.NotEmpty(t, list.Players[0].ID)
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "10.0.0.1:5000"
	assert.Equal(t, "10.0.0.1:5000", getClientIP(r))

	r.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", getClientIP(r))

	r.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	assert.Equal(t, "10.0.0.3", getClientIP(r))
}
