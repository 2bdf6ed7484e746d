package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

var ErrNoCredentials = errors.New("auth: no credentials available")

// Credentials is a read-only snapshot. Consumers never mutate a snapshot;
// refreshed credentials arrive as a new value from the resolver.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiry          time.Time
}

func (c Credentials) HasKeys() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// Expired reports whether the snapshot is past its expiry. A zero expiry
// means the credentials do not expire.
func (c Credentials) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}

// CredentialResolver supplies credential snapshots on demand. Resolve may
// be called repeatedly over the life of a stream; implementations must be
// safe for concurrent use.
type CredentialResolver interface {
	Resolve(ctx context.Context) (Credentials, error)
}

type StaticResolver struct {
	Credentials Credentials
}

func (r StaticResolver) Resolve(ctx context.Context) (Credentials, error) {
	if !r.Credentials.HasKeys() {
		return Credentials{}, ErrNoCredentials
	}
	return r.Credentials, nil
}

// EnvResolver reads the conventional environment variables.
type EnvResolver struct{}

func (EnvResolver) Resolve(ctx context.Context) (Credentials, error) {
	creds := Credentials{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
	}
	if !creds.HasKeys() {
		return Credentials{}, fmt.Errorf("%w: AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set", ErrNoCredentials)
	}
	return creds, nil
}

// ChainResolver tries each resolver in order and returns the first
// snapshot that resolves.
type ChainResolver []CredentialResolver

func (r ChainResolver) Resolve(ctx context.Context) (Credentials, error) {
	for _, under := range r {
		creds, err := under.Resolve(ctx)
		if err == nil {
			return creds, nil
		}
		if !errors.Is(err, ErrNoCredentials) {
			return Credentials{}, err
		}
	}
	return Credentials{}, ErrNoCredentials
}

// refreshWindow is how long before expiry a cached snapshot is considered
// stale. Streams sign chunks continuously, so refreshing early keeps a
// mid-stream key rotation off the expiry edge.
const refreshWindow = time.Minute

// CachedResolver memoizes another resolver and refreshes the snapshot as
// it approaches expiry.
type CachedResolver struct {
	under CredentialResolver
	now   func() time.Time

	mu    sync.Mutex
	creds Credentials
	valid bool
}

func NewCachedResolver(under CredentialResolver) *CachedResolver {
	return &CachedResolver{under: under, now: time.Now}
}

func (r *CachedResolver) Resolve(ctx context.Context) (Credentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.valid && !r.stale() {
		return r.creds, nil
	}

	creds, err := r.under.Resolve(ctx)
	if err != nil {
		return Credentials{}, err
	}
	r.creds = creds
	r.valid = true
	return creds, nil
}

func (r *CachedResolver) stale() bool {
	if r.creds.Expiry.IsZero() {
		return false
	}
	return !r.now().Add(refreshWindow).Before(r.creds.Expiry)
}

// Default is the resolver used when a client is built without one.
func Default() CredentialResolver {
	return NewCachedResolver(ChainResolver{EnvResolver{}})
}
