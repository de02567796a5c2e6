package token

import (
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// VerifiedClaims is the trusted output of a successful verification.
// Values are only populated from a signature-verified decode; the peeked
// unverified claims used for dispatch never leak into this type.
type VerifiedClaims struct {
	Subject   string
	Email     string
	Name      string
	Issuer    string
	Audience  string
	ExpiresAt time.Time
	IssuedAt  time.Time

	// Raw holds the full verified claim map for callers that need
	// provider-specific claims (e.g. cognito:groups).
	Raw map[string]any
}

func claimsFrom(mc jwtv5.MapClaims) *VerifiedClaims {
	vc := &VerifiedClaims{Raw: map[string]any(mc)}

	vc.Subject, _ = mc.GetSubject()
	vc.Issuer, _ = mc.GetIssuer()
	if auds, err := mc.GetAudience(); err == nil && len(auds) > 0 {
		vc.Audience = auds[0]
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		vc.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		vc.IssuedAt = iat.Time
	}
	vc.Email, _ = mc["email"].(string)
	vc.Name, _ = mc["name"].(string)

	return vc
}
