package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"linkqual/internal/pipeline"
	"linkqual/internal/server"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Stream is an open websocket observation stream. It is not safe for
// concurrent use.
type Stream struct {
	conn *websocket.Conn
}

func (c *Client) streamURL() string {
	switch {
	case strings.HasPrefix(c.base, "https://"):
		return "wss://" + strings.TrimPrefix(c.base, "https://") + "/stream"
	case strings.HasPrefix(c.base, "http://"):
		return "ws://" + strings.TrimPrefix(c.base, "http://") + "/stream"
	}
	return c.base + "/stream"
}

// Dial opens a stream to the service.
func (c *Client) Dial(ctx context.Context) (*Stream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.streamURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	conn.SetReadLimit(512 * 1024)
	return &Stream{conn: conn}, nil
}

// Send writes obs and waits for its reply.
func (s *Stream) Send(obs pipeline.Observation) (server.StreamMessage, error) {
	var msg server.StreamMessage

	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := s.conn.WriteJSON(obs); err != nil {
		return msg, fmt.Errorf("write failed: %w", err)
	}
	s.conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	if err := s.conn.ReadJSON(&msg); err != nil {
		return msg, fmt.Errorf("read message failed: %w", err)
	}
	return msg, nil
}

func (s *Stream) Close() error {
	s.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

// Replay streams every observation in order, calling onReply for each
// answer. A dropped connection is re-dialed with exponential backoff and
// resumes at the first unanswered observation. Observations without an ID
// get one, so one that was learned before its reply was lost is answered
// as a duplicate instead of being learned twice.
func (c *Client) Replay(ctx context.Context, obs []pipeline.Observation, onReply func(pipeline.Observation, server.StreamMessage)) error {
	obs = withIDs(obs)
	backoff := 100 * time.Millisecond
	maxBackoff := 10 * time.Second
	next := 0

	for next < len(obs) {
		if err := ctx.Err(); err != nil {
			return err
		}

		sent, err := c.replayOnce(ctx, obs[next:], onReply)
		next += sent
		if err == nil {
			return nil
		}
		if next > 0 && sent > 0 {
			backoff = 100 * time.Millisecond
		}
		log.Warn().Err(err).Dur("backoff", backoff).Int("remaining", len(obs)-next).Msg("Stream failed, reconnecting")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return nil
}

func (c *Client) replayOnce(ctx context.Context, obs []pipeline.Observation, onReply func(pipeline.Observation, server.StreamMessage)) (int, error) {
	s, err := c.Dial(ctx)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	for i, o := range obs {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		msg, err := s.Send(o)
		if err != nil {
			return i, err
		}
		if onReply != nil {
			onReply(o, msg)
		}
	}
	return len(obs), nil
}

func withIDs(obs []pipeline.Observation) []pipeline.Observation {
	out := make([]pipeline.Observation, len(obs))
	for i, o := range obs {
		if o.ID == "" {
			o.ID = uuid.New().String()
		}
		out[i] = o
	}
	return out
}
