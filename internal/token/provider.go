// Package token implements multi-issuer bearer token verification.
//
// The provider set is closed: the pool-native issuer (Cognito) plus the two
// external sign-in issuers (Apple, Google). Each provider shares one
// verification algorithm parameterized by issuer strings, audience list and
// key-distribution endpoint.
package token

import "errors"

// Kind identifies a token provider.
type Kind string

const (
	KindCognito Kind = "cognito"
	KindApple   Kind = "apple"
	KindGoogle  Kind = "google"
)

// Well-known external issuer endpoints.
const (
	appleIssuer  = "https://appleid.apple.com"
	appleJWKSURL = "https://appleid.apple.com/auth/keys"

	googleIssuer     = "https://accounts.google.com"
	googleIssuerBare = "accounts.google.com"
	googleJWKSURL    = "https://www.googleapis.com/oauth2/v3/certs"
)

// Sentinel errors, one per caller-visible failure condition. Signature,
// issuer and time failures all collapse into ErrInvalid so responses never
// reveal which check rejected the token.
var (
	ErrMalformed       = errors.New("token: malformed token")
	ErrInvalidKey      = errors.New("token: no signing key found for kid")
	ErrInvalidAudience = errors.New("token: audience not accepted")
	ErrInvalid         = errors.New("token: invalid or expired token")
	ErrUnknownProvider = errors.New("token: unknown provider")
)

// Provider carries the per-issuer verification parameters.
type Provider struct {
	Kind    Kind
	JWKSURL string

	// Issuers holds every accepted issuer spelling. With ManualIssuerCheck
	// the comparison happens after decoding (needed when a provider has two
	// equivalent spellings); otherwise the single entry is enforced by the
	// decode library.
	Issuers           []string
	ManualIssuerCheck bool

	// Audiences lists every accepted audience value (one per client
	// surface). The verifier tries them in order; first match wins.
	Audiences []string

	// Algorithms restricts accepted signing algorithms.
	Algorithms []string
}

// CognitoProvider describes the pool-native issuer for the given user pool.
func CognitoProvider(issuer, jwksURL, clientID string) Provider {
	return Provider{
		Kind:       KindCognito,
		JWKSURL:    jwksURL,
		Issuers:    []string{issuer},
		Audiences:  []string{clientID},
		Algorithms: []string{"RS256"},
	}
}

// AppleProvider describes Sign in with Apple for the given bundle/service ids.
func AppleProvider(audiences []string) Provider {
	return Provider{
		Kind:       KindApple,
		JWKSURL:    appleJWKSURL,
		Issuers:    []string{appleIssuer},
		Audiences:  audiences,
		Algorithms: []string{"RS256"},
	}
}

// GoogleProvider describes Google Sign-In for the given OAuth client ids.
// Google historically signs with either issuer spelling, so the issuer is
// compared manually after decoding.
func GoogleProvider(audiences []string) Provider {
	return Provider{
		Kind:              KindGoogle,
		JWKSURL:           googleJWKSURL,
		Issuers:           []string{googleIssuer, googleIssuerBare},
		ManualIssuerCheck: true,
		Audiences:         audiences,
		Algorithms:        []string{"RS256"},
	}
}
