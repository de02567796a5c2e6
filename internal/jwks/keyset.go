// Package jwks fetches and caches issuer public-key sets.
//
// Key sets live until explicitly invalidated: the verifier's
// invalidate-and-retry on a kid miss is what heals rotation, not TTLs.
package jwks

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// jwk is a single entry of a JWKS document. Only the RSA fields are
// interesting here; every issuer this service talks to signs with RS256.
type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"` // base64url
	E   string `json:"e"` // base64url
}

type document struct {
	Keys []jwk `json:"keys"`
}

// KeySet holds the parsed public keys of exactly one issuer endpoint.
// It is immutable after construction; the cache replaces sets wholesale.
type KeySet struct {
	endpoint  string
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// ParseKeySet builds a KeySet from a raw JWKS document.
// A missing or empty "keys" array yields a valid empty set. Entries that are
// not RSA signing keys are skipped rather than rejected: issuers are free to
// publish key types this service does not use.
func ParseKeySet(endpoint string, raw []byte, fetchedAt time.Time) (*KeySet, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("jwks: invalid document from %s: %w", endpoint, err)
	}

	ks := &KeySet{
		endpoint:  endpoint,
		keys:      make(map[string]*rsa.PublicKey, len(doc.Keys)),
		fetchedAt: fetchedAt,
	}
	for _, k := range doc.Keys {
		if !strings.EqualFold(k.Kty, "RSA") || k.Kid == "" {
			continue
		}
		pub, err := rsaPublicKey(k)
		if err != nil {
			continue
		}
		ks.keys[k.Kid] = pub
	}
	return ks, nil
}

// Key returns the public key for kid, if present.
func (s *KeySet) Key(kid string) (*rsa.PublicKey, bool) {
	k, ok := s.keys[kid]
	return k, ok
}

// Len returns the number of usable keys in the set.
func (s *KeySet) Len() int { return len(s.keys) }

// Endpoint returns the key-distribution endpoint this set came from.
func (s *KeySet) Endpoint() string { return s.endpoint }

// FetchedAt returns when the set was fetched.
func (s *KeySet) FetchedAt() time.Time { return s.fetchedAt }

func rsaPublicKey(k jwk) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("jwks: bad modulus for kid %s: %w", k.Kid, err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("jwks: bad exponent for kid %s: %w", k.Kid, err)
	}
	e := 0
	if len(eb) == 0 {
		e = 65537
	} else {
		for _, b := range eb {
			e = (e << 8) | int(b)
		}
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}
