package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/eleven-am/transcribe-stream/internal/auth"
	"github.com/eleven-am/transcribe-stream/internal/eventstream"
	"github.com/eleven-am/transcribe-stream/internal/sigv4"
	"github.com/eleven-am/transcribe-stream/internal/transport"
)

var (
	testClock = time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
	testCreds = auth.Credentials{
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
	}
)

// eventLog records observable side effects of a handshake, in order.
type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

type fakePending struct {
	meta     transport.ResponseMetadata
	inbound  *bytes.Reader
	outbound *transport.StreamBody
	raw      []byte
	log      *eventLog
}

func (p *fakePending) ResolveHeaders(ctx context.Context) (transport.ResponseMetadata, error) {
	return p.meta, nil
}

func (p *fakePending) DrainBody(ctx context.Context) ([]byte, error) {
	p.log.add(fmt.Sprintf("drain(outboundClosed=%v)", p.outbound.Closed()))
	return p.raw, nil
}

func (p *fakePending) Body() io.Reader { return p.inbound }

func (p *fakePending) Close() error {
	p.log.add("close-inbound")
	return nil
}

// fakeTransport resolves every handshake with a canned response and
// collects the frames the producer writes to the outbound body.
type fakeTransport struct {
	status  int
	header  http.Header
	resBody []byte
	log     eventLog

	mu      sync.Mutex
	request *transport.Request
	frames  [][]byte
	sendCnt int
	drained chan struct{}
}

func (f *fakeTransport) Mode() transport.Mode { return transport.ModeSignedHeader }

func (f *fakeTransport) Send(ctx context.Context, req *transport.Request) (transport.PendingResponse, error) {
	drained := make(chan struct{})
	f.mu.Lock()
	f.request = req
	f.sendCnt++
	f.drained = drained
	f.mu.Unlock()

	// Drain the outbound body so producer writes do not block; each read
	// is one frame because frames are written in single writes.
	go func() {
		defer close(drained)
		buf := make([]byte, 1<<20)
		for {
			n, err := req.Body.Read(buf)
			if n > 0 {
				frame := make([]byte, n)
				copy(frame, buf[:n])
				f.mu.Lock()
				f.frames = append(f.frames, frame)
				f.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()

	header := f.header
	if header == nil {
		header = http.Header{}
	}
	return &fakePending{
		meta:     transport.ResponseMetadata{StatusCode: f.status, Header: header},
		inbound:  bytes.NewReader(f.resBody),
		outbound: req.Body,
		raw:      f.resBody,
		log:      &f.log,
	}, nil
}

func (f *fakeTransport) sentFrames() [][]byte {
	// Wait for the drain goroutine to observe the closed outbound body so
	// every transmitted frame has been recorded.
	f.mu.Lock()
	drained := f.drained
	f.mu.Unlock()
	if drained != nil {
		<-drained
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

func (f *fakeTransport) sentRequest() *transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.request
}

func newTestClient(t *testing.T, tr transport.Transport) *Client {
	t.Helper()
	c, err := New(Config{
		Region:      "us-east-1",
		Credentials: auth.StaticResolver{Credentials: testCreds},
		Transport:   tr,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.eventSigner.Now = func() time.Time { return testClock }
	return c
}

func TestStartStreamTranscriptionSeedsChainFromHandshake(t *testing.T) {
	tr := &fakeTransport{status: 200, header: http.Header{"X-Amzn-Request-Id": []string{"req-1"}}}
	c := newTestClient(t, tr)

	session, err := c.StartStreamTranscription(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("StartStreamTranscription: %v", err)
	}
	defer session.Close()

	authz := tr.sentRequest().Header.Get("Authorization")
	wantSeed, err := sigv4.ExtractSeedSignature(authz)
	if err != nil {
		t.Fatalf("ExtractSeedSignature: %v", err)
	}
	if len(wantSeed) != 32 {
		t.Fatalf("seed length = %d, want 32", len(wantSeed))
	}
	if !bytes.Equal(session.Audio.prevSig, wantSeed) {
		t.Error("chain seed does not match the handshake signature")
	}
	if session.Response.RequestID != "req-1" {
		t.Errorf("RequestID = %q", session.Response.RequestID)
	}
}

func TestStartStreamTranscriptionServiceError(t *testing.T) {
	tr := &fakeTransport{
		status:  400,
		resBody: []byte(`{"__type":"BadRequestException","Message":"bad language code"}`),
	}
	c := newTestClient(t, tr)

	_, err := c.StartStreamTranscription(context.Background(), validRequest())

	var serr *ServiceError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *ServiceError", err)
	}
	if serr.Code != "BadRequestException" {
		t.Errorf("Code = %q", serr.Code)
	}
	if serr.StatusCode != 400 {
		t.Errorf("StatusCode = %d", serr.StatusCode)
	}

	// The outbound body must be closed strictly before the error body is
	// drained, or a duplex transport can deadlock.
	entries := tr.log.list()
	if len(entries) == 0 || entries[0] != "drain(outboundClosed=true)" {
		t.Errorf("handshake side effects = %v, want drain to observe a closed outbound body", entries)
	}
}

func TestStartStreamTranscriptionUnexpectedStatus(t *testing.T) {
	for _, status := range []int{201, 301} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			tr := &fakeTransport{status: status}
			c := newTestClient(t, tr)

			_, err := c.StartStreamTranscription(context.Background(), validRequest())

			var perr *ProtocolError
			if !errors.As(err, &perr) {
				t.Fatalf("err = %v, want *ProtocolError", err)
			}
			if perr.StatusCode != status {
				t.Errorf("StatusCode = %d, want %d", perr.StatusCode, status)
			}
			if !tr.sentRequest().Body.Closed() {
				t.Error("outbound body left open on fatal status")
			}
		})
	}
}

func TestStartStreamTranscriptionValidatesBeforeIO(t *testing.T) {
	tr := &fakeTransport{status: 200}
	c := newTestClient(t, tr)

	req := validRequest()
	req.ShowSpeakerLabel = true
	req.EnableChannelIdentification = true

	_, err := c.StartStreamTranscription(context.Background(), req)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if tr.sendCnt != 0 {
		t.Error("transport touched despite validation failure")
	}
}

func TestStartStreamTranscriptionCredentialFailures(t *testing.T) {
	expired := testCreds
	expired.Expiry = testClock.Add(-time.Hour)

	tests := []struct {
		name  string
		creds auth.CredentialResolver
	}{
		{name: "no credentials", creds: auth.StaticResolver{}},
		{name: "expired credentials", creds: auth.StaticResolver{Credentials: expired}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(Config{
				Region:      "us-east-1",
				Credentials: tt.creds,
				Transport:   &fakeTransport{status: 200},
			})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			_, err = c.StartStreamTranscription(context.Background(), validRequest())
			var cerr *CredentialError
			if !errors.As(err, &cerr) {
				t.Fatalf("err = %v, want *CredentialError", err)
			}
		})
	}
}

func TestAudioStreamSendCloseSendSequence(t *testing.T) {
	tr := &fakeTransport{status: 200}
	c := newTestClient(t, tr)

	session, err := c.StartStreamTranscription(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("StartStreamTranscription: %v", err)
	}

	ctx := context.Background()
	if err := session.Audio.Send(ctx, []byte{}); err != nil {
		t.Fatalf("Send(empty): %v", err)
	}
	if err := session.Audio.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := session.Audio.Send(ctx, []byte("more")); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("Send after Close err = %v, want ErrStreamClosed", err)
	}
	if err := session.Audio.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	frames := tr.sentFrames()
	if len(frames) != 2 {
		t.Fatalf("sent %d frames, want 2 (one audio chunk, one end-of-stream)", len(frames))
	}

	chunk, err := eventstream.DecodeBytes(frames[0])
	if err != nil {
		t.Fatalf("decode chunk frame: %v", err)
	}
	eos, err := eventstream.DecodeBytes(frames[1])
	if err != nil {
		t.Fatalf("decode end-of-stream frame: %v", err)
	}

	inner, err := eventstream.DecodeBytes(chunk.Payload)
	if err != nil {
		t.Fatalf("decode inner event: %v", err)
	}
	if got := inner.Headers.Get(eventstream.HeaderEventType); got != "AudioEvent" {
		t.Errorf("inner event type = %q", got)
	}
	if len(inner.Payload) != 0 {
		t.Errorf("inner payload length = %d, want 0", len(inner.Payload))
	}
	if len(eos.Payload) != 0 {
		t.Errorf("end-of-stream payload length = %d, want 0", len(eos.Payload))
	}

	// Both frames carry chained signatures: each reproducible from the
	// preceding signature, starting at the handshake seed.
	seed, err := sigv4.ExtractSeedSignature(tr.sentRequest().Header.Get("Authorization"))
	if err != nil {
		t.Fatalf("ExtractSeedSignature: %v", err)
	}
	ref := sigv4.NewEventSigner("transcribe", "us-east-1")
	ref.Now = func() time.Time { return testClock }

	_, wantSig1, err := ref.SignEvent(testCreds, seed, chunk.Payload)
	if err != nil {
		t.Fatalf("reference SignEvent: %v", err)
	}
	_, wantSig2, err := ref.SignEvent(testCreds, wantSig1, nil)
	if err != nil {
		t.Fatalf("reference SignEvent: %v", err)
	}

	gotSig1, ok := chunk.Headers.Lookup(eventstream.HeaderChunkSig)
	if !ok {
		t.Fatal("chunk frame missing :chunk-signature")
	}
	gotSig2, ok := eos.Headers.Lookup(eventstream.HeaderChunkSig)
	if !ok {
		t.Fatal("end-of-stream frame missing :chunk-signature")
	}
	if !bytes.Equal(gotSig1.Bytes(), wantSig1) {
		t.Error("chunk signature not chained from handshake seed")
	}
	if !bytes.Equal(gotSig2.Bytes(), wantSig2) {
		t.Error("end-of-stream signature not chained from chunk signature")
	}
	if bytes.Equal(gotSig1.Bytes(), gotSig2.Bytes()) {
		t.Error("consecutive chain signatures collided")
	}
}

func TestNewRequiresRegion(t *testing.T) {
	_, err := New(Config{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
}
