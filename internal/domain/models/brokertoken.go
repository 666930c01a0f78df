// internal/domain/models/brokertoken.go
package models

import "time"

// BrokerToken is a persisted access token for one brokerage provider.
// Provider doubles as the document ID so each provider has one token.
type BrokerToken struct {
	Provider    string     `bson:"_id" json:"provider"` // groww | zerodha
	AccessToken string     `bson:"access_token" json:"-"`
	ExpiresAt   *time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"` // nil means no known expiry
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}
