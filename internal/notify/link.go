package notify

import (
	"net/url"
	"strings"
)

// ContactLink builds a WhatsApp click-to-chat link for number with text prefilled.
func ContactLink(number, text string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)

	link := "https://wa.me/" + digits
	if text == "" {
		return link
	}

	// wa.me expects %20, QueryEscape encodes spaces as '+'.
	return link + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}
