package notify

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glory2yahpub/marketplace/internal/domain"
)

const adminNumber = "+50942882076"

type fakePublisher struct {
	sent []Message
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, msg Message) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

func TestContactLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		number string
		text   string
		want   string
	}{
		{name: "bare number", number: "+50948592888", want: "https://wa.me/50948592888"},
		{name: "number without plus", number: "50948592888", want: "https://wa.me/50948592888"},
		{name: "formatted number", number: "+509 4859-2888", want: "https://wa.me/50948592888"},
		{
			name:   "text is escaped",
			number: "+50948592888",
			text:   "Total: 10 + 5 & more?",
			want:   "https://wa.me/50948592888?text=Total%3A%2010%20%2B%205%20%26%20more%3F",
		},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ContactLink(tt.number, tt.text), tt.name)
	}
}

func TestRender_AllKinds(t *testing.T) {
	t.Parallel()

	for kind := range messages {
		text, err := Render(kind, nil)
		require.NoError(t, err, kind)
		assert.NotEmpty(t, text, kind)
		assert.NotContains(t, text, "<no value>", kind)
	}

	_, err := Render(domain.EventKind("nope"), nil)
	require.ErrorIs(t, err, ErrUnknownEvent)
}

func TestRender_FillsPayload(t *testing.T) {
	t.Parallel()

	text, err := Render(domain.EventTopUpRequested, map[string]string{
		"amount":     "100",
		"identity":   "+50933334444",
		"request_id": "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Nouvo demann Gkach: 100 Gkach pou +50933334444. ID: req-1", text)
}

func TestWhatsApp_Notify(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	n := NewWhatsApp(adminNumber, pub)

	link, err := n.Notify(context.Background(), domain.AdminRecipient, domain.EventBatchDeleted, map[string]string{"batch_id": "b1"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "https://wa.me/50942882076?text="), link)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "Gwoup piblisite b1 efase.", u.Query().Get("text"))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, adminNumber, pub.sent[0].To)
	assert.Equal(t, domain.EventBatchDeleted, pub.sent[0].Kind)
	assert.Equal(t, link, pub.sent[0].Link)

	_, err = n.Notify(context.Background(), "+50911112222", domain.EventListingApproved, map[string]string{"title": "Shoes", "listing_id": "l1"})
	require.NoError(t, err)
	assert.Equal(t, "+50911112222", pub.sent[1].To)
}

func TestWhatsApp_NotifyErrors(t *testing.T) {
	t.Parallel()

	_, err := NewWhatsApp("", nil).Notify(context.Background(), domain.AdminRecipient, domain.EventBatchCreated, nil)
	require.ErrorIs(t, err, ErrNoRecipient)

	boom := errors.New("broker down")
	link, err := NewWhatsApp(adminNumber, &fakePublisher{err: boom}).
		Notify(context.Background(), "+50911112222", domain.EventTopUpRejected, map[string]string{"amount": "5"})
	require.ErrorIs(t, err, boom)
	assert.NotEmpty(t, link)

	link, err = NewWhatsApp(adminNumber, nil).Notify(context.Background(), "+50911112222", domain.EventTopUpRejected, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, link)
}
