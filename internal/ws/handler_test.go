package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/derby-console/internal/console"
	"github.com/DoyleJ11/derby-console/internal/derby"
	"github.com/DoyleJ11/derby-console/internal/models"
	"github.com/DoyleJ11/derby-console/internal/store"
	"github.com/DoyleJ11/derby-console/internal/types"
)

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) types.ServerMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg types.ServerMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func writeMessage(t *testing.T, ctx context.Context, conn *websocket.Conn, m types.ClientMessage) {
	t.Helper()
	payload, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, payload))
}

func newPreparedConsole(t *testing.T, ctx context.Context) *console.Console {
	t.Helper()
	d := derby.New(store.NewMemoryStore(), zap.NewNop())
	c, err := console.New(ctx, d, nil, zap.NewNop())
	require.NoError(t, err)
	roster := derby.Roster{
		Name:    "Den Derby",
		Classes: []models.RacingClass{{ID: 1, Name: "Cubs"}},
		Racers: []models.Racer{
			{CarNumber: 1, RacingClassID: 1},
			{CarNumber: 2, RacingClassID: 1},
		},
	}
	require.NoError(t, c.Prepare(ctx, roster, 2, 0))
	return c
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHandler(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := newPreparedConsole(t, ctx)
	srv := httptest.NewServer(Handler(c, zap.NewNop()))
	defer srv.Close()

	conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	first := readMessage(t, ctx, conn)
	assert.Equal(t, "BoardSnapshot", first.Type)
	assert.Equal(t, 1, first.Version)
	require.NotNil(t, first.Board)
	assert.Equal(t, 1, first.Board.Status.Current.Race)

	writeMessage(t, ctx, conn, types.ClientMessage{Type: "Rewind"})
	msg := readMessage(t, ctx, conn)
	assert.Equal(t, "Error", msg.Type)
	assert.Contains(t, msg.Error, "no prior race")

	writeMessage(t, ctx, conn, types.ClientMessage{Type: "TimerReading", Raw: "no times here"})
	msg = readMessage(t, ctx, conn)
	assert.Equal(t, "Error", msg.Type)

	writeMessage(t, ctx, conn, types.ClientMessage{Type: "TimerReading", Raw: "1 2.5000 2 2.6000"})
	msg = readMessage(t, ctx, conn)
	assert.Equal(t, "BoardSnapshot", msg.Type)
	assert.Equal(t, 2, msg.Version)
	assert.Equal(t, 2, msg.Board.Status.Current.Race)

	writeMessage(t, ctx, conn, types.ClientMessage{Type: "Launch"})
	msg = readMessage(t, ctx, conn)
	assert.Equal(t, "Error", msg.Type)
	assert.Equal(t, "unknown type", msg.Error)
}

func TestHandler_DisconnectReleasesWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := newPreparedConsole(t, ctx)
	srv := httptest.NewServer(Handler(c, zap.NewNop()))
	defer srv.Close()

	before := runtime.NumGoroutine()

	const displays = 20
	for i := 0; i < displays; i++ {
		conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
		require.NoError(t, err)
		first := readMessage(t, ctx, conn)
		require.Equal(t, "BoardSnapshot", first.Type)
		require.NoError(t, conn.Close(websocket.StatusNormalClosure, "done"))
	}

	require.Eventually(t, func() bool {
		view, err := c.View(ctx)
		return err == nil && view.NumClients == 0
	}, 5*time.Second, 10*time.Millisecond)

	// idle server goroutines may linger; one writer per display must not
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() < before+displays/2
	}, 5*time.Second, 20*time.Millisecond, "goroutines: before=%d now=%d", before, runtime.NumGoroutine())
}
