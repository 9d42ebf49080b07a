package telephony

import (
	"errors"
	"fmt"
	"time"

	"github.com/twilio/twilio-go/client/jwt"
)

// VoiceTokenIssuer mints Twilio Client access tokens for agent softphones.
// The token identity is the agent's extension, which is also the <Client> name
// used when a call is dialed or transferred to that agent.
type VoiceTokenIssuer struct {
	AccountSID     string
	APIKey         string
	APISecret      string
	ApplicationSID string
	TTL            time.Duration
}

var ErrVoiceTokenNotConfigured = errors.New("telephony: voice token issuer not configured")

func (v VoiceTokenIssuer) Issue(identity string) (string, error) {
	if v.AccountSID == "" || v.APIKey == "" || v.APISecret == "" {
		return "", ErrVoiceTokenNotConfigured
	}
	if identity == "" {
		return "", errors.New("telephony: identity required")
	}
	ttl := v.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	tok := jwt.CreateAccessToken(jwt.AccessTokenParams{
		AccountSid:    v.AccountSID,
		SigningKeySid: v.APIKey,
		Secret:        v.APISecret,
		Identity:      identity,
		Ttl:           ttl.Seconds(),
	})
	grant := &jwt.VoiceGrant{}
	grant.Incoming.Allow = true
	grant.Outgoing.ApplicationSid = v.ApplicationSID
	tok.AddGrant(grant)

	s, err := tok.ToJwt()
	if err != nil {
		return "", fmt.Errorf("telephony: sign voice token: %w", err)
	}
	return s, nil
}
