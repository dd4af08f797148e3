// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/schr45-ship-it/shaalkal-socket-server/internal/middleware"
	"github.com/schr45-ship-it/shaalkal-socket-server/internal/models"
	"github.com/schr45-ship-it/shaalkal-socket-server/internal/room"
)

// wsSubprotocol is the required subprotocol for session connections.
const wsSubprotocol = "quiz"

// outChanSize bounds the per-connection outbound queue. Writes beyond it are
// dropped rather than blocking a room transition.
const outChanSize = 32

// ClientMessage is the envelope for every inbound session event. Only the
// fields relevant to the given Type are populated by clients; everything
// else is defaulted rather than rejected.
type ClientMessage struct {
	Type string `json:"type"`

	PIN   string `json:"pin,omitempty"`
	Name  string `json:"name,omitempty"`
	Title string `json:"title,omitempty"`

	Question *models.QuestionSpec `json:"question,omitempty"`
	Answer   *int                 `json:"answer,omitempty"`
	Meta     *models.MetaPatch    `json:"meta,omitempty"`

	// Interstitial fields.
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
	ImageURL   string `json:"imageUrl,omitempty"`
	YoutubeURL string `json:"youtubeUrl,omitempty"`
	BgColor    string `json:"bgColor,omitempty"`
}

// wsConn is a single client's presence on the gateway: an opaque connection
// identifier plus a buffered outbound queue drained by its write pump.
type wsConn struct {
	ID     uuid.UUID
	Out    chan room.Event
	Cancel func()

	logger *logrus.Logger
}

// Write pushes an event onto the connection's queue non-blockingly. Dropped
// events are logged; delivery is fire-and-forget by design.
func (c *wsConn) Write(ev room.Event) {
	select {
	case c.Out <- ev:
	default:
		c.logger.Warnf("conn %s: outbound queue full or closed, dropped event %q", c.ID, ev.Type())
	}
}

// QuizServer is the connection gateway: it accepts websocket clients,
// assigns them opaque identifiers, routes inbound events to the room
// registry, and fans outbound events back to one connection or to every
// connection subscribed to a room's PIN.
type QuizServer struct {
	Registry *room.Registry

	logger         *logrus.Logger
	originPatterns []string

	mu    sync.Mutex
	conns map[uuid.UUID]*wsConn
	subs  map[string]map[uuid.UUID]*wsConn
}

// NewQuizServer wires a gateway around the given registry. originPatterns
// are host[:port] patterns for the browser origin check (see
// config.OriginHosts), not full URLs.
func NewQuizServer(logger *logrus.Logger, reg *room.Registry, originPatterns []string) *QuizServer {
	return &QuizServer{
		Registry:       reg,
		logger:         logger,
		originPatterns: originPatterns,
		conns:          make(map[uuid.UUID]*wsConn),
		subs:           make(map[string]map[uuid.UUID]*wsConn),
	}
}

// WSHandler upgrades the HTTP connection and runs the read loop until the
// client disconnects. Disconnect is implicit: closing the socket ends rooms
// the connection hosted and removes it from rooms it played in.
func (s *QuizServer) WSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{wsSubprotocol},
			OriginPatterns: s.originPatterns,
		})
		if err != nil {
			s.logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != wsSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the quiz subprotocol")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := &wsConn{
			ID:     uuid.New(),
			Out:    make(chan room.Event, outChanSize),
			Cancel: cancel,
			logger: s.logger,
		}
		s.register(conn)
		middleware.LogWebSocketConnect(s.logger, r.RemoteAddr, r.URL.Path)

		go s.writePump(ctx, c, conn)
		readErr := s.readPump(ctx, c, conn)

		s.unregister(conn)
		s.Registry.DropConnection(conn.ID)
		middleware.LogWebSocketDisconnect(s.logger, r.RemoteAddr, r.URL.Path, readErr)
	}
}

// readPump decodes inbound envelopes and routes them until the connection
// closes. Returns the terminal read error, nil for a normal closure.
func (s *QuizServer) readPump(ctx context.Context, c *websocket.Conn, conn *wsConn) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			if strings.Contains(err.Error(), "context canceled") {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			s.logger.Warnf("conn %s: ignoring non-text message type %d", conn.ID, typ)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warnf("conn %s: invalid json: %v", conn.ID, err)
			conn.Write(room.Event{"type": "error", "message": "Invalid JSON format"})
			continue
		}
		s.handleMessage(conn, msg)
	}
}

// handleMessage dispatches one inbound event. Unresolvable PINs are silently
// dropped everywhere except the join path, and rooms enforce their own
// authority and precondition guards, so nothing here needs to surface errors.
func (s *QuizServer) handleMessage(conn *wsConn, msg ClientMessage) {
	switch msg.Type {
	case "host:create_room":
		rm := s.Registry.CreateRoom(conn.ID, msg.Title)
		s.attachRoom(rm)
		s.subscribe(conn, rm.PIN)
		conn.Write(room.Event{"type": room.EventRoomCreated, "pin": rm.PIN})
		s.logger.Infof("conn %s created room %s", conn.ID, rm.PIN)

	case "player:join":
		rm, ok := s.Registry.GetRoom(msg.PIN)
		if !ok {
			conn.Write(room.Event{"type": room.EventJoinError, "message": "Room not found"})
			return
		}
		s.subscribe(conn, rm.PIN)
		rm.Join(conn.ID, msg.Name)

	case "player:answer":
		if msg.Answer == nil {
			return
		}
		if rm, ok := s.Registry.GetRoom(msg.PIN); ok {
			rm.SubmitAnswer(conn.ID, *msg.Answer)
		}

	case "host:start_question":
		if rm, ok := s.Registry.GetRoom(msg.PIN); ok {
			var spec models.QuestionSpec
			if msg.Question != nil {
				spec = *msg.Question
			}
			rm.StartQuestion(conn.ID, spec)
		}

	case "host:finish_question":
		if rm, ok := s.Registry.GetRoom(msg.PIN); ok {
			rm.FinishQuestion(conn.ID)
		}

	case "host:set_meta":
		if rm, ok := s.Registry.GetRoom(msg.PIN); ok {
			var patch models.MetaPatch
			if msg.Meta != nil {
				patch = *msg.Meta
			}
			rm.SetMeta(conn.ID, patch)
		}

	case "host:interstitial":
		if rm, ok := s.Registry.GetRoom(msg.PIN); ok {
			rm.ShowInterstitial(conn.ID, msg.Message, msg.DurationMs, msg.ImageURL, msg.YoutubeURL, msg.BgColor)
		}

	case "host:pause_question":
		if rm, ok := s.Registry.GetRoom(msg.PIN); ok {
			rm.PauseQuestion(conn.ID)
		}

	case "host:resume_question":
		if rm, ok := s.Registry.GetRoom(msg.PIN); ok {
			rm.ResumeQuestion(conn.ID)
		}

	case "host:skip_video":
		if rm, ok := s.Registry.GetRoom(msg.PIN); ok {
			rm.SkipVideo(conn.ID)
		}

	case "host:show_scores":
		if rm, ok := s.Registry.GetRoom(msg.PIN); ok {
			rm.ShowScores(conn.ID)
		}

	case "host:end_game":
		if rm, ok := s.Registry.GetRoom(msg.PIN); ok {
			rm.EndGame(conn.ID)
		}

	default:
		s.logger.Warnf("conn %s: unknown event type %q", conn.ID, msg.Type)
		conn.Write(room.Event{"type": "error", "message": fmt.Sprintf("Unknown event type: %s", msg.Type)})
	}
}

// attachRoom hands a freshly created room its broadcast closures and chains
// gateway subscription cleanup onto the registry's OnEnd.
func (s *QuizServer) attachRoom(rm *room.Room) {
	pin := rm.PIN
	rm.BroadcastFn = func(ev room.Event) {
		s.mu.Lock()
		targets := make([]*wsConn, 0, len(s.subs[pin]))
		for _, c := range s.subs[pin] {
			targets = append(targets, c)
		}
		s.mu.Unlock()
		for _, c := range targets {
			c.Write(ev)
		}
	}
	rm.ToConnFn = func(connID uuid.UUID, ev room.Event) {
		s.mu.Lock()
		c, ok := s.conns[connID]
		s.mu.Unlock()
		if ok {
			c.Write(ev)
		}
	}
	base := rm.OnEnd
	rm.OnEnd = func(endedPIN string) {
		if base != nil {
			base(endedPIN)
		}
		s.dropRoomSubs(endedPIN)
	}
}

func (s *QuizServer) register(conn *wsConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn.ID] = conn
}

func (s *QuizServer) unregister(conn *wsConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn.ID)
	for pin, set := range s.subs {
		delete(set, conn.ID)
		if len(set) == 0 {
			delete(s.subs, pin)
		}
	}
}

func (s *QuizServer) subscribe(conn *wsConn, pin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.subs[pin]
	if !ok {
		set = make(map[uuid.UUID]*wsConn)
		s.subs[pin] = set
	}
	set[conn.ID] = conn
}

func (s *QuizServer) dropRoomSubs(pin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, pin)
}

// writePump drains the connection's outbound queue onto the socket and keeps
// the connection alive with periodic pings.
func (s *QuizServer) writePump(ctx context.Context, c *websocket.Conn, conn *wsConn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-conn.Out:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warnf("conn %s: failed to marshal outgoing event: %v", conn.ID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.logger.Warnf("conn %s: websocket write failed: %v", conn.ID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				s.logger.Warnf("conn %s: ping failed, assuming disconnect: %v", conn.ID, err)
				return
			}
		}
	}
}
