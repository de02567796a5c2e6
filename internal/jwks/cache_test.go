package jwks_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mfigueredo/tokenbridge/internal/cache"
	"github.com/mfigueredo/tokenbridge/internal/jwks"
)

func jwksDocument(t *testing.T, kids ...string) ([]byte, map[string]*rsa.PublicKey) {
	t.Helper()

	pubs := make(map[string]*rsa.PublicKey, len(kids))
	keys := make([]map[string]string, 0, len(kids))
	for _, kid := range kids {
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("gen key: %v", err)
		}
		pub := &priv.PublicKey
		pubs[kid] = pub
		keys = append(keys, map[string]string{
			"kty": "RSA",
			"use": "sig",
			"alg": "RS256",
			"kid": kid,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}

	raw, err := json.Marshal(map[string]any{"keys": keys})
	if err != nil {
		t.Fatalf("marshal doc: %v", err)
	}
	return raw, pubs
}

func TestGetFetchesOnceAndCaches(t *testing.T) {
	raw, pubs := jwksDocument(t, "kid-1")

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	c := jwks.NewCache(5 * time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ks, err := c.Get(ctx, srv.URL)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		key, ok := ks.Key("kid-1")
		if !ok {
			t.Fatalf("get %d: kid-1 not in set", i)
		}
		if key.N.Cmp(pubs["kid-1"].N) != 0 {
			t.Fatalf("get %d: wrong modulus", i)
		}
	}

	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("expected 1 fetch, got %d", n)
	}
}

func TestConcurrentColdGetsCollapse(t *testing.T) {
	raw, _ := jwksDocument(t, "kid-1")

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		time.Sleep(50 * time.Millisecond) // hold the flight open
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	c := jwks.NewCache(5 * time.Second)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(ctx, srv.URL); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("expected collapsed single fetch, got %d", n)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	raw, _ := jwksDocument(t, "kid-1")

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	c := jwks.NewCache(5 * time.Second)
	ctx := context.Background()

	if _, err := c.Get(ctx, srv.URL); err != nil {
		t.Fatalf("first get: %v", err)
	}
	c.Invalidate(ctx, srv.URL)
	if _, err := c.Get(ctx, srv.URL); err != nil {
		t.Fatalf("second get: %v", err)
	}

	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("expected 2 fetches, got %d", n)
	}
}

func TestGetUnavailableOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := jwks.NewCache(5 * time.Second)
	if _, err := c.Get(context.Background(), srv.URL); !errors.Is(err, jwks.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGetUnavailableOnTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := jwks.NewCache(2 * time.Second)
	if _, err := c.Get(context.Background(), srv.URL); !errors.Is(err, jwks.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestBackingMirrorSkipsColdFetch(t *testing.T) {
	raw, _ := jwksDocument(t, "kid-1")

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	backing, err := cache.New(cache.Config{Kind: "memory"})
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	ctx := context.Background()

	c1 := jwks.NewCache(5*time.Second, jwks.WithBacking(backing))
	if _, err := c1.Get(ctx, srv.URL); err != nil {
		t.Fatalf("warm get: %v", err)
	}

	// A second cache sharing the mirror must not hit the endpoint.
	c2 := jwks.NewCache(5*time.Second, jwks.WithBacking(backing))
	ks, err := c2.Get(ctx, srv.URL)
	if err != nil {
		t.Fatalf("mirrored get: %v", err)
	}
	if _, ok := ks.Key("kid-1"); !ok {
		t.Fatal("kid-1 missing from mirrored set")
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("expected 1 fetch, got %d", n)
	}

	// Invalidate drops the mirror too, so the next cold load re-fetches.
	c2.Invalidate(ctx, srv.URL)
	c3 := jwks.NewCache(5*time.Second, jwks.WithBacking(backing))
	if _, err := c3.Get(ctx, srv.URL); err != nil {
		t.Fatalf("post-invalidate get: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("expected 2 fetches after invalidate, got %d", n)
	}
}

func TestParseKeySetToleratesBadEntries(t *testing.T) {
	raw, _ := jwksDocument(t, "good")

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	keys := doc["keys"].([]any)
	keys = append(keys,
		map[string]any{"kty": "EC", "kid": "not-rsa"},
		map[string]any{"kty": "RSA", "kid": "bad-n", "n": "!!!", "e": "AQAB"},
	)
	doc["keys"] = keys
	mixed, _ := json.Marshal(doc)

	ks, err := jwks.ParseKeySet("https://keys.example", mixed, time.Now())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ks.Len() != 1 {
		t.Fatalf("expected 1 usable key, got %d", ks.Len())
	}
	if _, ok := ks.Key("good"); !ok {
		t.Fatal("good key missing")
	}
}

func TestParseKeySetEmptyDocument(t *testing.T) {
	ks, err := jwks.ParseKeySet("https://keys.example", []byte(`{}`), time.Now())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ks.Len() != 0 {
		t.Fatalf("expected empty set, got %d", ks.Len())
	}
}
