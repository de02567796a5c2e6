package token

import (
	"fmt"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// peeked holds the parts of a token read without signature verification.
// Good enough to pick a key and a provider, never good enough to trust.
type peeked struct {
	kid    string
	issuer string
}

func peek(raw string) (*peeked, error) {
	parser := jwtv5.NewParser()
	tok, _, err := parser.ParseUnverified(raw, jwtv5.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	kid, _ := tok.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: header has no kid", ErrMalformed)
	}

	var iss string
	if mc, ok := tok.Claims.(jwtv5.MapClaims); ok {
		iss, _ = mc.GetIssuer()
	}
	return &peeked{kid: kid, issuer: iss}, nil
}

// Resolve inspects an unverified token and decides which provider's rules
// apply on the generic bearer path. A Google issuer routes to Google;
// everything else falls through to pool-native verification, where foreign
// tokens are rejected anyway. Apple is never dispatched here: Apple identity
// tokens only arrive through the dedicated exchange endpoint.
func Resolve(raw string) (Kind, error) {
	p, err := peek(raw)
	if err != nil {
		return "", err
	}
	if p.issuer == googleIssuer {
		return KindGoogle, nil
	}
	return KindCognito, nil
}
