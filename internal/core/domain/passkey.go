package domain

import "time"

// Passkey gates registration. Keys are provisioned out of band (see cmd/passkeyctl).
type Passkey struct {
	ID         string     `json:"id"`
	Key        string     `json:"key"`
	Label      string     `json:"label"`
	Active     bool       `json:"active"`
	SingleUse  bool       `json:"singleUse"`
	ConsumedAt *time.Time `json:"consumedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}
