package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// The gateway redelivers events for up to a day; remembering bodies a little
// past that window absorbs the whole retry schedule.
const defaultWebhookTTL = 26 * time.Hour

// WebhookDedup short-circuits redelivered webhook bodies before they hit the
// database. The conditional ledger updates stay the source of truth for
// idempotency; this is only load shedding. Callers Mark a body only after it
// was processed, so a failed delivery stays eligible for the provider's retry.
type WebhookDedup interface {
	Seen(body []byte) bool
	Mark(body []byte)
}

type webhookDedup struct {
	events Cache[string, struct{}]
	ttl    time.Duration
}

func NewWebhookDedup() WebhookDedup {
	return &webhookDedup{
		events: NewTTLCache[string, struct{}](),
		ttl:    defaultWebhookTTL,
	}
}

func (d *webhookDedup) Seen(body []byte) bool {
	_, ok := d.events.Get(bodyKey(body))
	return ok
}

func (d *webhookDedup) Mark(body []byte) {
	d.events.Set(bodyKey(body), struct{}{}, d.ttl)
}

func bodyKey(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
