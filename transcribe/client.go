package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eleven-am/transcribe-stream/internal/auth"
	"github.com/eleven-am/transcribe-stream/internal/endpoints"
	"github.com/eleven-am/transcribe-stream/internal/sigv4"
	"github.com/eleven-am/transcribe-stream/internal/transport"
)

const (
	serviceName = "transcribe"

	// presignExpiry is the validity window of a presigned WebSocket
	// handshake URL.
	presignExpiry = 5 * time.Minute
)

// Config assembles a Client. Region is required; everything else has a
// working default.
type Config struct {
	Region string

	// Credentials supplies signing key snapshots. Defaults to the env
	// resolver chain with caching.
	Credentials auth.CredentialResolver
	// Endpoints resolves the service endpoint. Defaults to the regional
	// endpoint.
	Endpoints endpoints.Resolver
	// Transport carries the duplex exchange. Defaults to HTTP/2.
	Transport transport.Transport
	Logger    *slog.Logger
}

// Client orchestrates the setup and transmission of audio streams to the
// streaming transcription service. One client can start any number of
// sessions; each session owns one transport connection.
type Client struct {
	region      string
	creds       auth.CredentialResolver
	endpoints   endpoints.Resolver
	transport   transport.Transport
	signer      *sigv4.RequestSigner
	eventSigner *sigv4.EventSigner
	log         *slog.Logger
}

func New(cfg Config) (*Client, error) {
	if cfg.Region == "" {
		return nil, &ValidationError{Message: "region is required"}
	}
	if cfg.Credentials == nil {
		cfg.Credentials = auth.Default()
	}
	if cfg.Endpoints == nil {
		cfg.Endpoints = endpoints.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Transport == nil {
		cfg.Transport = transport.NewHTTP2(cfg.Logger)
	}
	return &Client{
		region:      cfg.Region,
		creds:       cfg.Credentials,
		endpoints:   cfg.Endpoints,
		transport:   cfg.Transport,
		signer:      sigv4.NewRequestSigner(serviceName, cfg.Region),
		eventSigner: sigv4.NewEventSigner(serviceName, cfg.Region),
		log:         cfg.Logger,
	}, nil
}

// StartStreamTranscription authenticates and opens one streaming session.
// On success the caller owns the returned Session and drives both halves
// concurrently. On failure no session is returned and nothing is retried;
// retrying is the caller's decision and requires a brand-new session.
func (c *Client) StartStreamTranscription(ctx context.Context, req *StartStreamTranscriptionRequest) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ep, err := c.endpoints.Resolve(c.region)
	if err != nil {
		return nil, fmt.Errorf("transcribe: resolve endpoint: %w", err)
	}

	creds, err := c.creds.Resolve(ctx)
	if err != nil {
		return nil, &CredentialError{Err: err}
	}
	now := time.Now()
	if creds.Expired(now) {
		return nil, &CredentialError{Err: fmt.Errorf("credentials expired at %s", creds.Expiry)}
	}

	handshake := buildHandshake(req, ep, c.transport.Mode())

	var signature string
	if c.transport.Mode() == transport.ModePresignedURL {
		signature, err = c.signer.Presign(handshake, creds, now, presignExpiry)
	} else {
		signature, err = c.signer.Sign(handshake, creds, now)
	}
	if err != nil {
		return nil, &CredentialError{Err: err}
	}

	pending, err := c.transport.Send(ctx, handshake)
	if err != nil {
		handshake.Body.Close()
		return nil, fmt.Errorf("transcribe: send handshake: %w", err)
	}

	meta, err := pending.ResolveHeaders(ctx)
	if err != nil {
		handshake.Body.Close()
		return nil, fmt.Errorf("transcribe: resolve handshake response: %w", err)
	}

	switch {
	case meta.StatusCode >= 400:
		// Close the outbound stream before draining the error body. A
		// duplex transport may hold the response back until the paired
		// request stream is finished; draining first deadlocks.
		handshake.Body.Close()
		body, derr := pending.DrainBody(ctx)
		pending.Close()
		if derr != nil {
			return nil, fmt.Errorf("transcribe: drain error response: %w", derr)
		}
		return nil, parseHandshakeError(meta, body)
	case meta.StatusCode != 200:
		handshake.Body.Close()
		pending.Close()
		return nil, &ProtocolError{Message: "unexpected status", StatusCode: meta.StatusCode}
	}

	seed, err := c.seedSignature(handshake, signature)
	if err != nil {
		handshake.Body.Close()
		pending.Close()
		return nil, err
	}

	c.log.Debug("transcription session established",
		"request_id", meta.Header.Get("x-amzn-request-id"),
		"session_id", meta.Header.Get(paramSessionID),
	)

	return &Session{
		Audio:       newAudioStream(c.eventSigner, c.creds, handshake.Body, seed),
		Transcripts: newTranscriptStream(pending),
		Response:    parseStartResponse(meta),
	}, nil
}

// seedSignature derives the root of the chunk signature chain from the
// handshake. Header-signed handshakes carry it in the Authorization
// value; presigned ones return it directly from the presigner.
func (c *Client) seedSignature(handshake *transport.Request, signature string) ([]byte, error) {
	authz := handshake.Header.Get("Authorization")
	if authz == "" {
		authz = "Signature=" + signature
	}
	seed, err := sigv4.ExtractSeedSignature(authz)
	if err != nil {
		return nil, &ProtocolError{Message: err.Error()}
	}
	return seed, nil
}
