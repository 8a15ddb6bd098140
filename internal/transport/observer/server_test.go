package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"scrollworld.ai/internal/observerproto"
	"scrollworld.ai/internal/protocol"
	"scrollworld.ai/internal/sim/tuning"
	"scrollworld.ai/internal/sim/world"
)

func startWorld(t *testing.T) (*world.World, *httptest.Server) {
	t.Helper()
	cfg := world.ConfigFromTuning("w1", tuning.Defaults())
	cfg.TickRateHz = 50
	cfg.Vegetation.DisableLife = true
	w, err := world.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	s := NewServer(w, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", s.WSHandler())
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return w, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads messages until match returns true or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, match func(typ string, raw []byte) bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var env observerproto.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("bad server message %s", raw)
		}
		if match(env.Type, raw) {
			return
		}
	}
	t.Fatalf("no matching message before deadline")
}

func TestBootstrap(t *testing.T) {
	w, srv := startWorld(t)
	resp, err := http.Get(srv.URL + "/v1/observer/bootstrap")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatal(err)
	}
	if b.WorldID != "w1" || b.RunID != w.RunID() || b.WorldParams.BlockSize != 30 || b.WorldParams.ViewWidth != 800 {
		t.Fatalf("bootstrap=%+v", b)
	}

	post, err := http.Post(srv.URL+"/v1/observer/bootstrap", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST status=%d", post.StatusCode)
	}
}

func TestWS_SubscribeMoveAndErrors(t *testing.T) {
	_, srv := startWorld(t)
	conn := dial(t, srv)

	if err := conn.WriteJSON(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version, Radius: 100}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, func(typ string, raw []byte) bool {
		if typ != observerproto.TypeStep {
			return false
		}
		var m observerproto.StepMsg
		_ = json.Unmarshal(raw, &m)
		return len(m.Objects) > 0 && m.Counts["terrain"] > 0
	})

	if err := conn.WriteJSON(observerproto.MoveMsg{Type: observerproto.TypeMove, ProtocolVersion: observerproto.Version, X: 5000}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, func(typ string, raw []byte) bool {
		var m observerproto.StepMsg
		_ = json.Unmarshal(raw, &m)
		return typ == observerproto.TypeStep && m.ObserverX == 5000 && m.Window[1] > 5000
	})

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"MOVE","protocol_version":"0.1","x":"far"}`)); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, func(typ string, raw []byte) bool {
		if typ != observerproto.TypeError {
			return false
		}
		var e observerproto.ErrorMsg
		_ = json.Unmarshal(raw, &e)
		if e.Code != protocol.ErrProtoBadRequest {
			t.Fatalf("code=%s", e.Code)
		}
		return true
	})

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"WALK","protocol_version":"2.0","speed":1}`)); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, func(typ string, raw []byte) bool {
		if typ != observerproto.TypeError {
			return false
		}
		var e observerproto.ErrorMsg
		_ = json.Unmarshal(raw, &e)
		return e.Code == protocol.ErrProtoVersion
	})
}

func TestWS_RateLimit(t *testing.T) {
	_, srv := startWorld(t)
	conn := dial(t, srv)

	if err := conn.WriteJSON(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version, Radius: 100}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < commandsPerSecond+20; i++ {
		if err := conn.WriteJSON(observerproto.MoveMsg{Type: observerproto.TypeMove, ProtocolVersion: observerproto.Version, X: float64(400 + i)}); err != nil {
			t.Fatal(err)
		}
	}
	readUntil(t, conn, func(typ string, raw []byte) bool {
		if typ != observerproto.TypeError {
			return false
		}
		var e observerproto.ErrorMsg
		_ = json.Unmarshal(raw, &e)
		return e.Code == protocol.ErrRateLimit
	})
}

func TestWS_RequiresSubscribeFirst(t *testing.T) {
	_, srv := startWorld(t)
	conn := dial(t, srv)
	if err := conn.WriteJSON(observerproto.MoveMsg{Type: observerproto.TypeMove, ProtocolVersion: observerproto.Version, X: 1}); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5555": true,
		"[::1]:80":       true,
		"10.0.0.2:1234":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v", addr, got)
		}
	}
}
