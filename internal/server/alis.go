package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/andyk/ht/internal/events"
)

// Frames of the asciinema live-stream JSON variant.
type alisHeader struct {
	Cols int     `json:"cols"`
	Rows int     `json:"rows"`
	Time float64 `json:"time"`
	Init string  `json:"init,omitempty"`
}

type alisOutput struct {
	Time float64 `json:"time"`
	O    string  `json:"o"`
}

type alisResize struct {
	Time float64 `json:"time"`
	R    string  `json:"r"`
}

// handleAlis upgrades to WebSocket and speaks the asciinema live-stream
// protocol: an init header frame, then output and resize frames stamped
// with seconds since the connection started.
func (s *Server) handleAlis(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		s.streamAlis(conn)
	})(c)
}

func (s *Server) streamAlis(conn *websocket.Conn) {
	defer conn.Close()

	sub, err := s.sess.Subscribe(map[events.Type]bool{
		events.TypeInit:   true,
		events.TypeOutput: true,
		events.TypeResize: true,
	})
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

	start := time.Now()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			frame, err := alisFrame(ev, time.Since(start).Seconds())
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func alisFrame(ev events.Event, elapsed float64) ([]byte, error) {
	switch data := ev.Data.(type) {
	case events.InitData:
		return json.Marshal(alisHeader{
			Cols: data.Cols,
			Rows: data.Rows,
			Time: 0,
			Init: data.Seq,
		})
	case events.OutputData:
		return json.Marshal(alisOutput{Time: elapsed, O: data.Seq})
	case events.ResizeData:
		return json.Marshal(alisResize{
			Time: elapsed,
			R:    fmt.Sprintf("%dx%d", data.Cols, data.Rows),
		})
	default:
		return nil, fmt.Errorf("no alis framing for %s", ev.Type)
	}
}
