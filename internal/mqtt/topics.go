package mqtt

import (
	"fmt"
	"strings"

	"deskhealth/internal/models"
)

// Topics builds feed topics under an account namespace:
// {namespace}/feeds/{feed}
type Topics struct {
	Namespace string
}

// Feed returns the topic for f
func (t Topics) Feed(f models.Feed) string {
	return fmt.Sprintf("%s/feeds/%s", t.Namespace, f)
}

// Mode returns the control topic
func (t Topics) Mode() string {
	return t.Feed(models.FeedMode)
}

// Alerts returns the alerts topic
func (t Topics) Alerts() string {
	return t.Feed(models.FeedAlerts)
}

// DecodePayload turns a raw message into trimmed text, dropping invalid
// UTF-8 rather than failing.
func DecodePayload(b []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(b), ""))
}
