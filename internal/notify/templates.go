package notify

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/glory2yahpub/marketplace/internal/domain"
)

var messages = map[domain.EventKind]string{
	domain.EventTopUpRequested:       "Nouvo demann Gkach: {{.amount}} Gkach pou {{.identity}}. ID: {{.request_id}}",
	domain.EventTopUpApproved:        "Demann Gkach ou a apwouve! {{.amount}} Gkach ajoute nan balans ou. Nouvo balans: {{.balance}} Gkach.",
	domain.EventTopUpRejected:        "Demann Gkach ou a ({{.amount}} Gkach) rejte. Kontakte administratè pou plis detay. ID: {{.request_id}}",
	domain.EventBalanceAdjusted:      "Administratè a ajiste balans ou: {{.delta}} Gkach ({{.reason}}). Nouvo balans: {{.balance}} Gkach.",
	domain.EventNegotiationStarted:   "Bonjou! Ou resevwa yon nouvo demann pou {{.items}}. Tanpri mete pri livrezon an. ID Livrezon: {{.negotiation_id}}",
	domain.EventShippingSet:          "Vandè a mete pri livrezon an: {{.shipping}} Gkach. Total: {{.total}} Gkach. ID Livrezon: {{.negotiation_id}}",
	domain.EventPurchaseConfirmed:    "Acha konfime pou {{.items}}: {{.total}} Gkach. ID Livrezon: {{.negotiation_id}}",
	domain.EventPurchaseDeclined:     "Achtè a refize acha a pou {{.items}}. ID Livrezon: {{.negotiation_id}}",
	domain.EventReceiptAcknowledged:  "Achtè a resevwa kòmand lan ({{.items}}). Mèsi! ID Livrezon: {{.negotiation_id}}",
	domain.EventNegotiationCancelled: "Livrezon {{.negotiation_id}} anile ({{.reason}}). Ranbousman: {{.refunded}}.",
	domain.EventMessageSent:          "Nouvo mesaj pou livrezon {{.negotiation_id}}: {{.body}}",
	domain.EventListingApproved:      "Piblisite w la '{{.title}}' (ID: {{.listing_id}}) apwouve! Li pral parèt nan gwoup yo byento.",
	domain.EventListingRejected:      "Piblisite w la '{{.title}}' (ID: {{.listing_id}}) rejte. Kontakte administratè pou plis detay.",
	domain.EventBatchCreated:         "Nouvo gwoup piblisite kreye: {{.url}}",
	domain.EventBatchRepaired:        "Gwoup piblisite {{.batch_id}} mete ajou ({{.members}} piblisite): {{.url}}",
	domain.EventBatchDeleted:         "Gwoup piblisite {{.batch_id}} efase.",
}

var templates = parseTemplates()

func parseTemplates() map[domain.EventKind]*template.Template {
	parsed := make(map[domain.EventKind]*template.Template, len(messages))
	for kind, text := range messages {
		parsed[kind] = template.Must(template.New(string(kind)).Option("missingkey=zero").Parse(text))
	}
	return parsed
}

// Render produces the human readable text for an event.
func Render(kind domain.EventKind, payload map[string]string) (string, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEvent, kind)
	}
	if payload == nil {
		payload = map[string]string{}
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, payload); err != nil {
		return "", fmt.Errorf("tmpl.Execute -> %w", err)
	}

	return sb.String(), nil
}
