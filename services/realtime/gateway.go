// Package realtime delivers engine notifications to Socket.IO clients. Each
// connection joins its user room on connect and may join the room of any
// match it participates in.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog"

	"eventmatch/services/matching"
)

const (
	namespace       = "/"
	userHeader      = "X-User-ID"
	consumerDurable = "realtime-gateway"
	joinTimeout     = 5 * time.Second
)

// MatchAuthorizer confirms that a user participates in a match.
type MatchAuthorizer interface {
	MatchFor(ctx context.Context, matchID, userID int64) (matching.Match, error)
}

type broadcaster interface {
	BroadcastToRoom(namespace, room, event string, args ...interface{}) bool
}

type session struct {
	userID int64
}

// Gateway is the Socket.IO server and the sink for engine notifications.
type Gateway struct {
	server *socketio.Server
	rooms  broadcaster
	auth   MatchAuthorizer
	log    zerolog.Logger

	subsMu sync.Mutex
	subs   []io.Closer
}

var _ matching.Notifier = (*Gateway)(nil)

func New(auth MatchAuthorizer, log zerolog.Logger) (*Gateway, error) {
	if auth == nil {
		return nil, errors.New("match authorizer is required")
	}

	server := socketio.NewServer(nil)
	g := &Gateway{server: server, rooms: server, auth: auth, log: log}

	server.OnConnect(namespace, g.onConnect)
	server.OnEvent(namespace, "join", g.onJoin)
	server.OnEvent(namespace, "leave", g.onLeave)
	server.OnError(namespace, func(s socketio.Conn, err error) {
		g.log.Debug().Err(err).Msg("socket error")
	})
	server.OnDisconnect(namespace, func(s socketio.Conn, reason string) {
		g.log.Debug().Str("socket_id", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})
	return g, nil
}

// Serve runs the engine.io accept loop until Close.
func (g *Gateway) Serve() error {
	return g.server.Serve()
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.server.ServeHTTP(w, r)
}

// Close stops bus consumers and the Socket.IO server.
func (g *Gateway) Close() error {
	g.subsMu.Lock()
	for _, sub := range g.subs {
		_ = sub.Close()
	}
	g.subs = nil
	g.subsMu.Unlock()
	return g.server.Close()
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("missing or invalid " + userHeader)
	}
	return id, nil
}

func (g *Gateway) onConnect(s socketio.Conn) error {
	userID, err := parseUserID(s.RemoteHeader().Get(userHeader))
	if err != nil {
		return err
	}
	s.SetContext(session{userID: userID})
	s.Join(matching.UserRoom(userID))
	g.log.Debug().Str("socket_id", s.ID()).Int64("user_id", userID).Msg("socket connected")
	return nil
}

// authorizeJoin returns the match room userID may enter.
func (g *Gateway) authorizeJoin(ctx context.Context, userID, matchID int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	m, err := g.auth.MatchFor(ctx, matchID, userID)
	if err != nil {
		return "", err
	}
	return matching.MatchRoom(m.ID), nil
}

func (g *Gateway) onJoin(s socketio.Conn, matchID int64) string {
	sess, ok := s.Context().(session)
	if !ok {
		return "unauthorized"
	}
	room, err := g.authorizeJoin(context.Background(), sess.userID, matchID)
	if err != nil {
		g.log.Debug().Err(err).Int64("user_id", sess.userID).Int64("match_id", matchID).Msg("join refused")
		return strings.ToLower(string(matching.CodeOf(err)))
	}
	s.Join(room)
	return "ok"
}

func (g *Gateway) onLeave(s socketio.Conn, matchID int64) string {
	s.Leave(matching.MatchRoom(matchID))
	return "ok"
}

// Notify broadcasts n to its room. Rooms without members drop the event.
func (g *Gateway) Notify(_ context.Context, n matching.Notification) error {
	g.rooms.BroadcastToRoom(namespace, n.Room, string(n.Kind), n.Payload)
	return nil
}

type envelope struct {
	ID      string          `json:"id"`
	Kind    matching.Kind   `json:"kind"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

func (g *Gateway) handleBusMessage(_ context.Context, data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		g.log.Error().Err(err).Msg("drop malformed notification")
		return nil
	}
	if env.Room == "" || env.Kind == "" {
		g.log.Error().Str("id", env.ID).Msg("drop notification without room or kind")
		return nil
	}
	g.rooms.BroadcastToRoom(namespace, env.Room, string(env.Kind), env.Payload)
	return nil
}

// Consume forwards notifications published by any API instance. Every
// gateway needs its own durable so each one receives the full stream.
func (g *Gateway) Consume(ctx context.Context, sub matching.Subscriber, instance string) error {
	if instance == "" {
		return errors.New("instance name is required")
	}
	durable := consumerDurable + "-" + strings.NewReplacer(".", "-", "*", "-", ">", "-", " ", "-").Replace(instance)
	closer, err := sub.Subscribe(ctx, matching.RealtimeSubjectPrefix+">", durable, g.handleBusMessage)
	if err != nil {
		return err
	}
	g.subsMu.Lock()
	g.subs = append(g.subs, closer)
	g.subsMu.Unlock()
	return nil
}
