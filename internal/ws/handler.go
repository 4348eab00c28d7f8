package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/derby-console/internal/console"
	"github.com/DoyleJ11/derby-console/internal/timer"
	"github.com/DoyleJ11/derby-console/internal/types"
)

var errUnknownType = errors.New("unknown type")

// Handler streams board snapshots to a display and accepts operator
// commands from it.
func Handler(c *console.Console, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// displays are served from the same host as the console
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan console.Snapshot, 8)
		clientID := ksuid.New().String()

		select {
		case c.Inbox() <- console.Join{ClientID: clientID, Outbox: out}:
		case <-c.Done():
			conn.Close(websocket.StatusGoingAway, "console stopped")
			return
		}
		// Writer goroutine, it exits once the console closes out.
		writerDone := make(chan struct{})
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer func() {
			writeCancel()
			select {
			case c.Inbox() <- console.Leave{ClientID: clientID}:
			case <-c.Done():
			}
			select {
			case <-writerDone:
			case <-c.Done():
			}
		}()
		go func() {
			defer close(writerDone)
			for snap := range out {
				msg := types.ServerMessage{Type: "BoardSnapshot", Version: snap.Version, Board: &snap.Board}
				payload, err := json.Marshal(msg)
				if err != nil {
					log.Error("failed to encode snapshot", zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			// left, dropped as slow, or console stopped
			conn.Close(websocket.StatusGoingAway, "display dropped")
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("display disconnected", zap.String("client", clientID), zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}
			if err := dispatch(r.Context(), c, cm); err != nil {
				writeError(r.Context(), conn, err.Error())
			}
		}
	}
}

func dispatch(ctx context.Context, c *console.Console, m types.ClientMessage) error {
	switch m.Type {
	case "TimerReading":
		if _, err := timer.ParseStrict(m.Raw); err != nil {
			return err
		}
		_, err := c.PostReading(ctx, m.Raw)
		return err
	case "Rewind":
		return c.Rewind(ctx)
	case "ScheduleRound":
		return c.ScheduleRound(ctx)
	default:
		return errUnknownType
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) {
	payload, _ := json.Marshal(types.ServerMessage{Type: "Error", Error: msg})
	_ = conn.Write(ctx, websocket.MessageText, payload)
}
