package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"scrollworld.ai/internal/observerproto"
	"scrollworld.ai/internal/protocol"
	"scrollworld.ai/internal/sim/world"
	"scrollworld.ai/internal/sim/world/logic/rates"
)

// Per-connection budget for MOVE/WALK/SUBSCRIBE messages.
const commandsPerSecond = 60

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	sessions atomic.Int64
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Sessions reports the number of connected observer sockets.
func (s *Server) Sessions() int64 { return s.sessions.Load() }

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		cfg := s.world.Config()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         cfg.ID,
			RunID:           s.world.RunID(),
			Step:            s.world.CurrentStep(),
			WorldParams: observerproto.WorldParams{
				TickRateHz:      cfg.TickRateHz,
				Seed:            cfg.Seed,
				ViewWidth:       cfg.ViewWidth,
				ViewHeight:      cfg.ViewHeight,
				BlockSize:       cfg.Terrain.BlockSize,
				AddThreshold:    cfg.AddThreshold,
				DeleteThreshold: cfg.DeleteThreshold,
				VegetationMode:  cfg.Vegetation.Mode,
			},
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := observerproto.Decode(raw)
		sub, ok := msg.(*observerproto.SubscribeMsg)
		if err != nil || !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		stepOut := make(chan []byte, 8)
		errOut := make(chan []byte, 8)

		joinReq := world.ObserverJoinRequest{
			SessionID: sid,
			StepOut:   stepOut,
			Radius:    sub.Radius,
		}
		select {
		case s.world.ObserverJoin() <- joinReq:
		default:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		s.sessions.Add(1)
		defer s.sessions.Add(-1)
		defer func() {
			select {
			case s.world.ObserverLeave() <- sid:
			default:
				// World loop is stopping; nothing else to do.
			}
		}()
		if s.log != nil {
			s.log.Printf("observer %s joined from %s radius=%g", sid, r.RemoteAddr, sub.Radius)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				var b []byte
				var ok bool
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b = <-errOut:
					ok = true
				case b, ok = <-stepOut:
				}
				if !ok {
					writeErr <- nil
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
		}()

		reject := func(code, message string) {
			b, _ := json.Marshal(observerproto.ErrorMsg{
				Type:            observerproto.TypeError,
				ProtocolVersion: observerproto.Version,
				Code:            code,
				Message:         message,
			})
			select {
			case errOut <- b:
			default:
			}
		}

		joined := time.Now()
		limit := rates.Window{Size: 1000, Max: commandsPerSecond}
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if ok, wait := limit.Allow(uint64(time.Since(joined).Milliseconds())); !ok {
				reject(protocol.ErrRateLimit, fmt.Sprintf("too many commands; retry in %dms", wait))
				continue
			}

			msg, err := observerproto.Decode(raw)
			if err != nil {
				code := protocol.ErrProtoBadRequest
				if errors.Is(err, observerproto.ErrVersion) {
					code = protocol.ErrProtoVersion
				}
				reject(code, err.Error())
				continue
			}
			switch m := msg.(type) {
			case *observerproto.SubscribeMsg:
				select {
				case s.world.ObserverSubscribe() <- world.ObserverSubscribeRequest{SessionID: sid, Radius: m.Radius}:
				default:
					reject(protocol.ErrWorldBusy, "subscribe dropped")
				}
			case *observerproto.MoveMsg:
				s.world.SetObserverX(m.X)
			case *observerproto.WalkMsg:
				s.world.SetWalkSpeed(m.Speed)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		if s.log != nil {
			s.log.Printf("observer %s left", sid)
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
