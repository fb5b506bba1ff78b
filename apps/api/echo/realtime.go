package echoapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/shule/core/content"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	changesBuf = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is checked by the middleware
	CheckOrigin: func(r *http.Request) bool { return true },
}

// publicCollections are the collections anyone may read, hence watch.
func (s *Server) publicCollections() map[content.Collection]bool {
	public := make(map[content.Collection]bool)
	for _, svc := range []interface {
		Collection() content.Collection
		Rules() content.Rules
	}{s.deps.Notices, s.deps.Events, s.deps.Timetables, s.deps.Gallery, s.deps.Feedback} {
		if svc.Rules().Read == content.Anyone {
			public[svc.Collection()] = true
		}
	}
	return public
}

// changes streams the content changes as JSON over a websocket, so clients can refetch their lists.
// "?collection=notices" restricts the stream to one collection.
func (s *Server) changes(ctx echo.Context) error {
	collection := content.Collection(ctx.QueryParam("collection"))
	public := s.publicCollections()
	if collection != "" && !public[collection] {
		return errHttpNotFound
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return nil // the upgrader has replied
	}
	defer conn.Close()

	// a slow client misses changes rather than slowing writers down
	changes := make(chan content.Change, changesBuf)
	unsubscribe := s.deps.Broker.OnChange(collection, func(ch content.Change) {
		if !public[ch.Collection] {
			return
		}
		select {
		case changes <- ch:
		default:
		}
	})
	defer unsubscribe()

	// read loop: handles pongs & detects the client going away
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return nil
		case ch := <-changes:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ch); err != nil {
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
