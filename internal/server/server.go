// Package server exposes a running session over HTTP: a live-preview page,
// an event WebSocket, and an asciinema live-stream WebSocket.
package server

import (
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/andyk/ht/internal/assets"
	"github.com/andyk/ht/internal/events"
	"github.com/andyk/ht/internal/logger"
	"github.com/andyk/ht/internal/session"
)

// Server relays session events to HTTP clients. It never touches the
// emulator; everything it serves comes through loop-ordered subscriptions.
type Server struct {
	app  *fiber.App
	sess *session.Session
}

// New builds the fiber app and its routes around a session.
func New(sess *session.Session) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{app: app, sess: sess}

	app.Get("/", s.handleIndex)
	app.Get("/ws/events", s.handleEvents)
	app.Get("/ws/alis", s.handleAlis)

	return s
}

// Listen binds addr (host:port, port 0 for ephemeral), prints the chosen
// URL on stderr and serves until Shutdown.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logger.Infof("live preview available at http://%s/", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(assets.LivePage())
}

// handleEvents upgrades to WebSocket and relays one text frame per event
// matching the ?sub= filter.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	subParam := c.Query("sub", "init,output,resize,snapshot")
	var names []string
	for _, name := range strings.Split(subParam, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	filter, err := events.ParseTypes(names)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return websocket.New(func(conn *websocket.Conn) {
		s.streamEvents(conn, filter)
	})(c)
}

func (s *Server) streamEvents(conn *websocket.Conn, filter map[events.Type]bool) {
	defer conn.Close()

	sub, err := s.sess.Subscribe(filter)
	if err != nil {
		return
	}
	defer s.sess.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := ev.Marshal()
			if err != nil {
				logger.Errorf("encode event: %v", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
