package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarthak03dot/Chat-App/internal/event"
	"github.com/sarthak03dot/Chat-App/internal/logging"
	"github.com/sarthak03dot/Chat-App/internal/security"
)

type frame struct {
	Type event.Type      `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil skips frames until one of type typ satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, typ event.Type, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == typ && (match == nil || match(f.Data)) {
			return f.Data
		}
	}
}

func TestHandler_EndToEnd(t *testing.T) {
	e := newEngineEnv(t)
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")

	tokens := security.NewTokenService("test-secret", time.Hour)
	identities := security.NewIdentityResolver(tokens, e.userRepo)
	srv := httptest.NewServer(MakeHandler(e.engine, identities, []string{"*"}, ClientOptions{SendBuffer: 16}, logging.Discard()))
	defer srv.Close()

	aliceToken, err := tokens.CreateForUser(alice)
	require.NoError(t, err)
	bobToken, err := tokens.CreateForUser(bob)
	require.NoError(t, err)

	a := dial(t, srv, aliceToken)
	readUntil(t, a, event.TypePresenceChanged, nil)
	b := dial(t, srv, bobToken)
	readUntil(t, a, event.TypePresenceChanged, func(raw json.RawMessage) bool {
		var d event.PresenceChangedData
		return json.Unmarshal(raw, &d) == nil && d.UserID == bob && d.Online
	})

	require.NoError(t, a.WriteJSON(map[string]any{
		"type": "sendMessage",
		"data": map[string]any{"recipient": bob, "content": "over the wire"},
	}))
	raw := readUntil(t, b, event.TypeMessageReceived, nil)
	var got struct {
		Content string `json:"content"`
		Sender  struct {
			ID string `json:"id"`
		} `json:"sender"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "over the wire", got.Content)
	assert.Equal(t, alice, got.Sender.ID)

	// Malformed frames are answered on the same connection, which stays open.
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))
	raw = readUntil(t, a, event.TypeError, nil)
	var rejected event.ErrorData
	require.NoError(t, json.Unmarshal(raw, &rejected))
	assert.Contains(t, rejected.Message, "dance")

	require.NoError(t, b.Close())
	readUntil(t, a, event.TypePresenceChanged, func(raw json.RawMessage) bool {
		var d event.PresenceChangedData
		return json.Unmarshal(raw, &d) == nil && d.UserID == bob && !d.Online
	})
	assert.Eventually(t, func() bool {
		return !e.presence.Online(bob)
	}, time.Second, 10*time.Millisecond)

	u, err := e.userRepo.GetByID(context.Background(), bob)
	require.NoError(t, err)
	assert.False(t, u.IsOnline)
}

func TestHandler_RejectsMissingToken(t *testing.T) {
	e := newEngineEnv(t)
	tokens := security.NewTokenService("test-secret", time.Hour)
	identities := security.NewIdentityResolver(tokens, e.userRepo)
	srv := httptest.NewServer(MakeHandler(e.engine, identities, []string{"*"}, ClientOptions{}, logging.Discard()))
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired, err := tokens.CreateWithTTL("ghost", -time.Minute)
	require.NoError(t, err)
	_, resp, err = websocket.DefaultDialer.Dial(u+"?token="+expired, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMakeCheckOrigin(t *testing.T) {
	check := makeCheckOrigin([]string{" http://localhost:3000 ", ""})

	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, check(req("")))
	assert.True(t, check(req("http://localhost:3000")))
	assert.True(t, check(req("HTTP://LOCALHOST:3000")))
	assert.False(t, check(req("http://evil.example")))
	assert.False(t, check(req("not a url")))

	assert.True(t, makeCheckOrigin([]string{"*"})(req("http://anything")))
}
