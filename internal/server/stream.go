package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"linkqual/internal/pipeline"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	streamReadLimit    = 64 * 1024
	streamPongWait     = 60 * time.Second
	streamPingInterval = 25 * time.Second
	streamWriteWait    = 10 * time.Second
)

// StreamMessage is what the server writes back for every observation read
// from a stream. Exactly one of Result and Error is set.
type StreamMessage struct {
	Result *pipeline.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
	Status int              `json:"status,omitempty"`
}

// handleStream upgrades to a websocket and processes one JSON observation
// per message, answering each in order.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.StreamOpened()
		defer s.metrics.StreamClosed()
	}
	log.Info().Str("remote", r.RemoteAddr).Msg("Observation stream opened")

	conn.SetReadLimit(streamReadLimit)
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		return nil
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var writeMu sync.Mutex
	write := func(msgType int, v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if v == nil {
			return conn.WriteMessage(msgType, nil)
		}
		return conn.WriteJSON(v)
	}

	go s.pingLoop(ctx, write)

	processed := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) || errors.Is(err, context.Canceled) {
				log.Info().Int("processed", processed).Msg("Observation stream closed")
			} else {
				log.Debug().Err(err).Int("processed", processed).Msg("Observation stream ended")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(streamPongWait))

		var req ObserveRequest
		var msg StreamMessage
		if err := json.Unmarshal(data, &req); err != nil {
			msg = StreamMessage{Error: "invalid message: " + err.Error(), Status: http.StatusBadRequest}
		} else if err := validate.Struct(req); err != nil {
			msg = StreamMessage{Error: err.Error(), Status: http.StatusBadRequest}
		} else if res, err := s.pipeline.Process(ctx, req.observation()); err != nil {
			msg = StreamMessage{Error: err.Error(), Status: statusFor(err)}
		} else {
			msg = StreamMessage{Result: &res}
			processed++
		}

		if err := write(websocket.TextMessage, msg); err != nil {
			log.Debug().Err(err).Msg("Stream write failed")
			return
		}
	}
}

func (s *Server) pingLoop(ctx context.Context, write func(int, any) error) {
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
