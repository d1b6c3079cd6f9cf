package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/gorilla/websocket"

	"github.com/wardenbot/warden/modguard/engine"
	"github.com/wardenbot/warden/util"
)

// streamFrame is one JSON text frame on the bridge event stream.
type streamFrame struct {
	Kind    string                    `json:"kind"`
	Message *engine.MessageEvent      `json:"message,omitempty"`
	Voice   *engine.ChannelStateEvent `json:"voice,omitempty"`
}

func (f *streamFrame) event() (*engine.Event, error) {
	switch f.Kind {
	case "message":
		if f.Message == nil {
			return nil, fmt.Errorf("message frame without body")
		}
		return &engine.Event{Message: f.Message}, nil
	case "voice":
		if f.Voice == nil {
			return nil, fmt.Errorf("voice frame without body")
		}
		return &engine.Event{ChannelState: f.Voice}, nil
	}
	return nil, fmt.Errorf("unknown event kind: %q", f.Kind)
}

func backoff(retries int, max int) time.Duration {
	dur := 1 << retries
	if dur > max {
		dur = max
	}
	jitter := time.Millisecond * time.Duration(rand.Intn(1000))
	return time.Second*time.Duration(dur) + jitter
}

// RunConsumer subscribes to the bridge event stream, reconnecting with backoff, until ctx is done.
func (s *Server) RunConsumer(ctx context.Context) error {
	u, err := util.StreamURL(s.eventsURL, "/events")
	if err != nil {
		return err
	}

	retries := 0
	for {
		start := time.Now()
		err := s.consumeStream(ctx, u)
		if ctx.Err() != nil {
			return nil
		}
		// a connection that stayed up for a while resets the backoff
		if time.Since(start) > time.Minute {
			retries = 0
		}
		wait := backoff(retries, 30)
		s.logger.Warn("event stream disconnected, reconnecting", "upstream", u, "err", err, "wait", wait)
		retries++
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		consumerReconnects.Inc()
	}
}

func (s *Server) consumeStream(ctx context.Context, u string) error {
	s.logger.Info("subscribing to event stream", "upstream", u)
	con, _, err := websocket.DefaultDialer.DialContext(ctx, u, http.Header{
		"User-Agent": []string{fmt.Sprintf("warden/%s", versioninfo.Short())},
	})
	if err != nil {
		return fmt.Errorf("subscribing to event stream failed (dialing): %w", err)
	}
	defer con.Close()

	// unblock ReadMessage on shutdown
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			con.Close()
		case <-done:
		}
	}()

	for {
		mt, data, err := con.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("event stream closed by upstream")
			}
			return err
		}
		if mt != websocket.TextMessage {
			continue
		}

		var frame streamFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Warn("undecodable event frame", "err", err)
			continue
		}
		evt, err := frame.event()
		if err != nil {
			s.logger.Warn("invalid event frame", "err", err)
			continue
		}
		eventsReceived.WithLabelValues("stream", evt.Kind()).Inc()

		// stream events are never dropped; a full queue slows down reading instead
		select {
		case s.events <- evt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
