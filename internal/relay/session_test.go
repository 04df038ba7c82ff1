package relay

import (
	"TradeTalk/internal/conversation"
	"TradeTalk/internal/generation"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialSession(t *testing.T, h *SessionHandler) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) serverFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f serverFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func sendTurn(t *testing.T, conn *websocket.Conn, text, image string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(clientFrame{Type: frameTurn, Text: text, Image: image}))
}

func TestSessionStartsWithHistory(t *testing.T) {
	conn := dialSession(t, NewSessionHandler(newTestPipeline(&fakeClient{}, nil), 5, nil, nil))

	f := readFrame(t, conn)
	assert.Equal(t, frameHistory, f.Type)
	require.Len(t, f.Messages, 1)
	assert.Equal(t, conversation.WelcomeText, f.Messages[0].Content)
}

func TestSessionTurn(t *testing.T) {
	client := &fakeClient{result: generation.Success("MACD crossed up.")}
	conn := dialSession(t, NewSessionHandler(newTestPipeline(client, nil), 5, nil, nil))
	readFrame(t, conn)

	sendTurn(t, conn, "What about MACD?", "")

	user := readFrame(t, conn)
	require.Equal(t, frameMessage, user.Type)
	assert.True(t, user.Message.IsUser)
	assert.Equal(t, "What about MACD?", user.Message.Content)

	pending := readFrame(t, conn)
	require.Equal(t, framePending, pending.Type)
	assert.True(t, *pending.Pending)

	ai := readFrame(t, conn)
	require.Equal(t, frameMessage, ai.Type)
	assert.False(t, ai.Message.IsUser)
	assert.Equal(t, "MACD crossed up.", ai.Message.Content)

	idle := readFrame(t, conn)
	require.Equal(t, framePending, idle.Type)
	assert.False(t, *idle.Pending)

	// В окно первого хода попадает только приветствие.
	req := client.lastRequest()
	require.Len(t, req.History, 1)
	assert.Equal(t, conversation.WelcomeText, req.History[0].Text)
}

func TestSessionFailureFrame(t *testing.T) {
	client := &fakeClient{result: generation.Failure(generation.ReasonEmptyResponse, "no candidates")}
	conn := dialSession(t, NewSessionHandler(newTestPipeline(client, nil), 5, nil, nil))
	readFrame(t, conn)

	sendTurn(t, conn, "", "aGVsbG8=")

	user := readFrame(t, conn)
	assert.Equal(t, conversation.ImageOnlyPlaceholder, user.Message.Content)
	readFrame(t, conn) // pending:true

	ai := readFrame(t, conn)
	assert.Equal(t, conversation.ApologyText, ai.Message.Content)

	failure := readFrame(t, conn)
	require.Equal(t, frameFailure, failure.Type)
	assert.Equal(t, string(generation.ReasonEmptyResponse), failure.Reason)

	idle := readFrame(t, conn)
	assert.False(t, *idle.Pending)
}

func TestSessionRejectsTurnWhilePending(t *testing.T) {
	release := make(chan struct{})
	client := &fakeClient{generate: func(ctx context.Context, _ generation.Request) generation.Result {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return generation.Success("first answer")
	}}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	conn := dialSession(t, NewSessionHandler(newTestPipeline(client, metrics), 5, metrics, nil))
	readFrame(t, conn)

	sendTurn(t, conn, "first", "")
	readFrame(t, conn) // user
	readFrame(t, conn) // pending:true

	sendTurn(t, conn, "second", "")
	rejected := readFrame(t, conn)
	require.Equal(t, frameRejected, rejected.Type)
	assert.Equal(t, rejectTurnPending, rejected.Reason)

	close(release)
	ai := readFrame(t, conn)
	assert.Equal(t, "first answer", ai.Message.Content)
	readFrame(t, conn) // pending:false

	assert.Equal(t, 1, client.calls())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.rejectedTurns.WithLabelValues(rejectTurnPending)))
}

func TestSessionRejectsInvalidFrames(t *testing.T) {
	client := &fakeClient{result: generation.Success("ok")}
	conn := dialSession(t, NewSessionHandler(newTestPipeline(client, nil), 5, nil, nil))
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(clientFrame{Type: "ping"}))
	assert.Equal(t, rejectUnknownFrame, readFrame(t, conn).Reason)

	sendTurn(t, conn, "   ", "")
	assert.Equal(t, rejectEmptyTurn, readFrame(t, conn).Reason)

	sendTurn(t, conn, "chart", "***")
	assert.Equal(t, rejectInvalidImage, readFrame(t, conn).Reason)

	assert.Zero(t, client.calls())
}
