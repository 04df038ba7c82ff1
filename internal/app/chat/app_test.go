package chat

import (
	"TradeTalk/internal/conversation"
	"TradeTalk/internal/generation"
	"TradeTalk/internal/service/image"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRelay struct {
	turns []conversation.Turn
	err   error
}

func (f *fakeRelay) Send(_ context.Context, turn conversation.Turn) (string, error) {
	f.turns = append(f.turns, turn)
	if f.err != nil {
		return "", f.err
	}
	return "answer to " + turn.Text, nil
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(path string) (image.Encoded, error) {
	if path == "missing.png" {
		return image.Encoded{}, fmt.Errorf("%w: no such file", image.ErrUnreadableImage)
	}
	return image.Encoded{Data: "aGVsbG8=", MimeType: "image/jpeg"}, nil
}

func runApp(t *testing.T, relay conversation.Relay, identity Identity, input string) (*App, string) {
	t.Helper()
	var out bytes.Buffer
	app := New(relay, fakeEncoder{}, identity, Options{}, strings.NewReader(input), &out, nil)
	require.NoError(t, app.Run(context.Background()))
	return app, out.String()
}

func TestRunTextAndImageTurns(t *testing.T) {
	relay := &fakeRelay{}
	app, out := runApp(t, relay, NewIdentity("u1", "trader@example.com", nil),
		"What is RSI?\n\n   \n/image chart.png Where is support?\n/image chart.png\n")

	assert.Contains(t, out, "Signed in as trader@example.com")
	assert.Contains(t, out, conversation.WelcomeText)
	assert.Contains(t, out, "TradeTalk AI: answer to What is RSI?")
	assert.Contains(t, out, "You: "+conversation.ImageOnlyPlaceholder)

	require.Len(t, relay.turns, 3)
	assert.Equal(t, "", relay.turns[0].Image)
	assert.Equal(t, "Where is support?", relay.turns[1].Text)
	assert.Equal(t, "aGVsbG8=", relay.turns[1].Image)
	assert.Equal(t, "", relay.turns[2].Text)
	assert.Equal(t, 1+2*3, app.Store().Len())
}

func TestRunUnreadableImage(t *testing.T) {
	relay := &fakeRelay{}
	app, out := runApp(t, relay, Identity{}, "/image missing.png\n/image\n")

	assert.Contains(t, out, "Signed in as guest")
	assert.Contains(t, out, "Could not read image missing.png")
	assert.Contains(t, out, "Usage: /image")
	assert.Empty(t, relay.turns)
	assert.Equal(t, 1, app.Store().Len())
}

func TestRunFailureShowsApologyAndToast(t *testing.T) {
	relay := &fakeRelay{err: &generation.Error{Reason: generation.ReasonEmptyResponse, Detail: "finishReason=SAFETY"}}
	_, out := runApp(t, relay, Identity{}, "hi\n")

	assert.Contains(t, out, conversation.ApologyText)
	assert.Contains(t, out, "! request failed (empty_response_failure)")
	assert.NotContains(t, out, "SAFETY")
}

func TestSignOutStopsLoop(t *testing.T) {
	relay := &fakeRelay{}
	var signedOut int
	identity := NewIdentity("u1", "", func(context.Context) error {
		signedOut++
		return nil
	})
	_, out := runApp(t, relay, identity, "/signout\nignored after sign out\n")

	assert.Equal(t, 1, signedOut)
	assert.Contains(t, out, "Signed out.")
	assert.Empty(t, relay.turns)
}

func TestSignOutError(t *testing.T) {
	identity := NewIdentity("u1", "", func(context.Context) error { return errors.New("provider down") })
	app := New(&fakeRelay{}, fakeEncoder{}, identity, Options{}, strings.NewReader("/signout\n"), &bytes.Buffer{}, nil)

	err := app.Run(context.Background())
	assert.ErrorContains(t, err, "provider down")
}

func TestQuit(t *testing.T) {
	relay := &fakeRelay{}
	_, _ = runApp(t, relay, Identity{}, "/quit\nstill here?\n")
	assert.Empty(t, relay.turns)
}

func TestIdentity(t *testing.T) {
	assert.True(t, Identity{}.Anonymous())
	assert.NoError(t, Identity{}.SignOut(context.Background()))
	assert.Equal(t, "u1", NewIdentity("u1", "", nil).DisplayName())
	assert.False(t, NewIdentity("u1", "", nil).Anonymous())
}
