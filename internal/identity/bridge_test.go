package identity_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/mfigueredo/tokenbridge/internal/identity"
)

// fakePool is an in-memory Pool with programmable failures.
type fakePool struct {
	accounts  map[string][]identity.Attribute
	passwords map[string]string

	lookupErr error
	createErr error
	setPwErr  error
	authErr   error

	calls []string
}

func newFakePool() *fakePool {
	return &fakePool{
		accounts:  make(map[string][]identity.Attribute),
		passwords: make(map[string]string),
	}
}

func (f *fakePool) Lookup(ctx context.Context, username string) (*identity.Account, error) {
	f.calls = append(f.calls, "lookup:"+username)
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if _, ok := f.accounts[username]; !ok {
		return nil, identity.ErrNotFound
	}
	return &identity.Account{Username: username}, nil
}

func (f *fakePool) Create(ctx context.Context, username string, attrs []identity.Attribute) error {
	f.calls = append(f.calls, "create:"+username)
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.accounts[username]; ok {
		return identity.ErrExists
	}
	f.accounts[username] = attrs
	return nil
}

func (f *fakePool) SetPermanentPassword(ctx context.Context, username, password string) error {
	f.calls = append(f.calls, "setpw:"+username)
	if f.setPwErr != nil {
		return f.setPwErr
	}
	f.passwords[username] = password
	return nil
}

func (f *fakePool) AdminInitiateAuth(ctx context.Context, clientID, username, password string) (*identity.TokenBundle, error) {
	f.calls = append(f.calls, "auth:"+username)
	if f.authErr != nil {
		return nil, f.authErr
	}
	if f.passwords[username] != password {
		return nil, fmt.Errorf("wrong password")
	}
	return &identity.TokenBundle{
		IDToken:     "id-" + username,
		AccessToken: "access-" + username,
		ExpiresIn:   3600,
	}, nil
}

func newBridge(pool identity.Pool, emailAsUsername bool) *identity.Bridge {
	return identity.NewBridge(identity.BridgeDeps{
		Pool:            pool,
		ClientID:        "client-1",
		EmailAsUsername: emailAsUsername,
	})
}

func TestUsernameDerivation(t *testing.T) {
	b := newBridge(newFakePool(), true)

	u, err := b.Username(identity.ExternalIdentity{Provider: "apple", Subject: "sub1", Email: "a@b.com"})
	if err != nil {
		t.Fatal(err)
	}
	if u != "a@b.com" {
		t.Fatalf("username = %q", u)
	}

	if _, err := b.Username(identity.ExternalIdentity{Provider: "apple", Subject: "sub1"}); !errors.Is(err, identity.ErrEmailRequired) {
		t.Fatalf("expected ErrEmailRequired, got %v", err)
	}

	b2 := newBridge(newFakePool(), false)
	u, err = b2.Username(identity.ExternalIdentity{Provider: "google", Subject: "sub2"})
	if err != nil {
		t.Fatal(err)
	}
	if u != "google_sub2" {
		t.Fatalf("username = %q", u)
	}
}

func TestResolveOrCreateExistingAccountUntouched(t *testing.T) {
	pool := newFakePool()
	pool.accounts["a@b.com"] = nil
	b := newBridge(pool, true)

	u, err := b.ResolveOrCreate(context.Background(), identity.ExternalIdentity{
		Provider: "google", Subject: "s", Email: "a@b.com", DisplayName: "New Name",
	})
	if err != nil {
		t.Fatal(err)
	}
	if u != "a@b.com" {
		t.Fatalf("username = %q", u)
	}
	for _, c := range pool.calls {
		if strings.HasPrefix(c, "create:") || strings.HasPrefix(c, "setpw:") {
			t.Fatalf("existing account was modified: %v", pool.calls)
		}
	}
}

func TestResolveOrCreateProvisionsNewAccount(t *testing.T) {
	pool := newFakePool()
	b := newBridge(pool, true)

	u, err := b.ResolveOrCreate(context.Background(), identity.ExternalIdentity{
		Provider: "apple", Subject: "s", Email: "a@b.com", DisplayName: "Ana",
	})
	if err != nil {
		t.Fatal(err)
	}
	if u != "a@b.com" {
		t.Fatalf("username = %q", u)
	}

	attrs := pool.accounts["a@b.com"]
	want := map[string]string{"email": "a@b.com", "email_verified": "true", "name": "Ana"}
	if len(attrs) != len(want) {
		t.Fatalf("attrs = %v", attrs)
	}
	for _, a := range attrs {
		if want[a.Name] != a.Value {
			t.Fatalf("attr %s = %q", a.Name, a.Value)
		}
	}
	// A permanent credential must be seeded right after creation.
	if pool.passwords["a@b.com"] == "" {
		t.Fatal("no initial credential set")
	}
}

func TestResolveOrCreateSurvivesCreationRace(t *testing.T) {
	pool := newFakePool()
	pool.createErr = identity.ErrExists
	b := newBridge(pool, true)

	u, err := b.ResolveOrCreate(context.Background(), identity.ExternalIdentity{
		Provider: "apple", Subject: "s", Email: "a@b.com",
	})
	if err != nil {
		t.Fatalf("race should resolve cleanly: %v", err)
	}
	if u != "a@b.com" {
		t.Fatalf("username = %q", u)
	}
}

func TestResolveOrCreatePoolUnavailable(t *testing.T) {
	pool := newFakePool()
	pool.lookupErr = &url.Error{Op: "Post", URL: "https://cognito", Err: errors.New("connect refused")}
	b := newBridge(pool, true)

	_, err := b.ResolveOrCreate(context.Background(), identity.ExternalIdentity{
		Provider: "apple", Subject: "s", Email: "a@b.com",
	})
	if !errors.Is(err, identity.ErrPoolUnavailable) {
		t.Fatalf("expected ErrPoolUnavailable, got %v", err)
	}

	pool.lookupErr = context.DeadlineExceeded
	if _, err := b.ResolveOrCreate(context.Background(), identity.ExternalIdentity{
		Provider: "apple", Subject: "s", Email: "a@b.com",
	}); !errors.Is(err, identity.ErrPoolUnavailable) {
		t.Fatalf("expected ErrPoolUnavailable on timeout, got %v", err)
	}
}

func TestResolveOrCreateProvisioningFailed(t *testing.T) {
	pool := newFakePool()
	pool.createErr = errors.New("quota exceeded")
	b := newBridge(pool, true)

	_, err := b.ResolveOrCreate(context.Background(), identity.ExternalIdentity{
		Provider: "apple", Subject: "s", Email: "a@b.com",
	})
	if !errors.Is(err, identity.ErrProvisioningFailed) {
		t.Fatalf("expected ErrProvisioningFailed, got %v", err)
	}
}

func TestMintNativeTokensRotatesCredential(t *testing.T) {
	pool := newFakePool()
	pool.accounts["a@b.com"] = nil
	pool.passwords["a@b.com"] = "previous"
	b := newBridge(pool, true)

	bundle, err := b.MintNativeTokens(context.Background(), "a@b.com")
	if err != nil {
		t.Fatal(err)
	}
	if bundle.AccessToken != "access-a@b.com" {
		t.Fatalf("bundle = %+v", bundle)
	}
	if pool.passwords["a@b.com"] == "previous" {
		t.Fatal("credential was not rotated")
	}

	// Rotation precedes the auth call.
	var setIdx, authIdx int
	for i, c := range pool.calls {
		switch {
		case strings.HasPrefix(c, "setpw:"):
			setIdx = i
		case strings.HasPrefix(c, "auth:"):
			authIdx = i
		}
	}
	if setIdx > authIdx {
		t.Fatalf("rotation after auth: %v", pool.calls)
	}
}

func TestMintNativeTokensFailures(t *testing.T) {
	pool := newFakePool()
	pool.authErr = errors.New("NotAuthorizedException")
	b := newBridge(pool, true)

	if _, err := b.MintNativeTokens(context.Background(), "a@b.com"); !errors.Is(err, identity.ErrMintFailed) {
		t.Fatalf("expected ErrMintFailed, got %v", err)
	}

	pool2 := newFakePool()
	pool2.setPwErr = context.DeadlineExceeded
	b2 := newBridge(pool2, true)
	if _, err := b2.MintNativeTokens(context.Background(), "a@b.com"); !errors.Is(err, identity.ErrPoolUnavailable) {
		t.Fatalf("expected ErrPoolUnavailable, got %v", err)
	}
}
