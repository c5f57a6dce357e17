package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glory2yahpub/marketplace/internal/domain"
	"github.com/glory2yahpub/marketplace/internal/pkg/jwthelper"
)

type fakeChat struct {
	negotiation domain.Negotiation
}

func (f *fakeChat) GetNegotiation(_ context.Context, id, caller string, admin bool) (domain.Negotiation, error) {
	if id != f.negotiation.ID {
		return domain.Negotiation{}, domain.ErrNegotiationNotFound
	}
	if !admin && !f.negotiation.IsParticipant(caller) {
		return domain.Negotiation{}, domain.ErrUnauthorized
	}
	return f.negotiation, nil
}

func (f *fakeChat) SendMessage(_ context.Context, id, sender, body string) (domain.Message, error) {
	if strings.TrimSpace(body) == "" {
		return domain.Message{}, domain.ErrEmptyMessage
	}
	return domain.Message{ID: "m-" + body, NegotiationID: id, Sender: sender, Body: body, CreatedAt: time.Now()}, nil
}

func (f *fakeChat) ListMessages(context.Context, string, string) ([]domain.Message, error) {
	return nil, nil
}

func dialChat(t *testing.T, srv *httptest.Server, negotiationID, identity string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	token, err := jwthelper.GenerateToken([]byte(testSigningKey), identity, string(domain.RoleMember), testUserAgent)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/negotiations/" + negotiationID + "/ws?token=" + token
	return websocket.DefaultDialer.Dial(url, http.Header{"User-Agent": {testUserAgent}})
}

func TestChatHandler_Relay(t *testing.T) {
	h := NewChatHandler(&fakeChat{
		negotiation: domain.Negotiation{ID: "n-1", Buyer: alice, Seller: bob},
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	r := newTestRouter()
	r.members.GET("/negotiations/:id/ws", h.HandleWebSocket)
	r.members.POST("/negotiations/:id/messages", h.HandlePostMessage)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := dialChat(t, srv, "n-1", alice)
	require.NoError(t, err)
	defer conn.Close()

	var got domain.Message
	require.NoError(t, conn.WriteJSON(map[string]string{"body": "bonjou"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "bonjou", got.Body)
	assert.Equal(t, alice, got.Sender)

	var errFrame map[string]string
	require.NoError(t, conn.WriteJSON(map[string]string{"body": " "}))
	require.NoError(t, conn.ReadJSON(&errFrame))
	assert.Equal(t, "error", errFrame["type"])
	assert.Equal(t, domain.ErrEmptyMessage.Error(), errFrame["message"])

	rec := call(t, r, http.MethodPost, "/api/v1/negotiations/n-1/messages", bob, domain.RoleMember, map[string]string{"body": "mèsi"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "mèsi", got.Body)
	assert.Equal(t, bob, got.Sender)
}

func TestChatHandler_RejectsOutsiders(t *testing.T) {
	h := NewChatHandler(&fakeChat{
		negotiation: domain.Negotiation{ID: "n-1", Buyer: alice, Seller: bob},
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	r := newTestRouter()
	r.members.GET("/negotiations/:id/ws", h.HandleWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	_, resp, err := dialChat(t, srv, "n-1", "+50933333333")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = dialChat(t, srv, "n-404", alice)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
