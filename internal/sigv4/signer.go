package sigv4

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/eleven-am/transcribe-stream/internal/auth"
	"github.com/eleven-am/transcribe-stream/internal/transport"
)

// RequestSigner computes SigV4 signatures for the session handshake. It
// never touches the streaming body; the payload hash is the streaming
// placeholder.
type RequestSigner struct {
	service string
	region  string
}

func NewRequestSigner(service, region string) *RequestSigner {
	return &RequestSigner{service: service, region: region}
}

// Sign canonicalizes the request, sets X-Amz-Date (and the security token
// header when present), writes the Authorization header, and returns the
// hex signature. The request headers are the only thing mutated.
func (s *RequestSigner) Sign(req *transport.Request, creds auth.Credentials, now time.Time) (string, error) {
	if !creds.HasKeys() {
		return "", auth.ErrNoCredentials
	}
	now = now.UTC()
	amzDate := now.Format(timeFormat)
	dateStamp := now.Format(dateFormat)

	req.Header.Set("X-Amz-Date", amzDate)
	if creds.SessionToken != "" {
		req.Header.Set("X-Amz-Security-Token", creds.SessionToken)
	}

	canonicalHeaders, signedHeaders := canonicalizeHeaders(req)
	canonicalRequest := strings.Join([]string{
		req.Method,
		canonicalURI(req.URL),
		canonicalQuery(req.URL.Query()),
		canonicalHeaders,
		signedHeaders,
		StreamingEventsPayloadHash,
	}, "\n")

	scope := credentialScope(dateStamp, s.region, s.service)
	stringToSign := strings.Join([]string{
		algorithm,
		amzDate,
		scope,
		hashHex([]byte(canonicalRequest)),
	}, "\n")

	key := deriveSigningKey(creds.SecretAccessKey, dateStamp, s.region, s.service)
	signature := hex.EncodeToString(hmacSHA256(key, []byte(stringToSign)))

	req.Header.Set("Authorization", fmt.Sprintf(
		"%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		algorithm, creds.AccessKeyID, scope, signedHeaders, signature,
	))
	return signature, nil
}

// Presign authenticates the request through query parameters instead of
// headers, for transports whose handshake cannot carry an Authorization
// header. Only the host header is signed. Returns the hex signature.
func (s *RequestSigner) Presign(req *transport.Request, creds auth.Credentials, now time.Time, expires time.Duration) (string, error) {
	if !creds.HasKeys() {
		return "", auth.ErrNoCredentials
	}
	now = now.UTC()
	amzDate := now.Format(timeFormat)
	dateStamp := now.Format(dateFormat)
	scope := credentialScope(dateStamp, s.region, s.service)

	q := req.URL.Query()
	q.Set("X-Amz-Algorithm", algorithm)
	q.Set("X-Amz-Credential", creds.AccessKeyID+"/"+scope)
	q.Set("X-Amz-Date", amzDate)
	q.Set("X-Amz-Expires", strconv.Itoa(int(expires.Seconds())))
	q.Set("X-Amz-SignedHeaders", "host")
	if creds.SessionToken != "" {
		q.Set("X-Amz-Security-Token", creds.SessionToken)
	}

	canonicalRequest := strings.Join([]string{
		req.Method,
		canonicalURI(req.URL),
		canonicalQuery(q),
		"host:" + hostValue(req.URL) + "\n",
		"host",
		hashHex(nil),
	}, "\n")

	stringToSign := strings.Join([]string{
		algorithm,
		amzDate,
		scope,
		hashHex([]byte(canonicalRequest)),
	}, "\n")

	key := deriveSigningKey(creds.SecretAccessKey, dateStamp, s.region, s.service)
	signature := hex.EncodeToString(hmacSHA256(key, []byte(stringToSign)))

	q.Set("X-Amz-Signature", signature)
	req.URL.RawQuery = encodeQuery(q)
	return signature, nil
}

// ExtractSeedSignature pulls the signature out of an Authorization header
// value and decodes it to raw bytes. This is the root of the chunk
// signature chain.
func ExtractSeedSignature(authorization string) ([]byte, error) {
	const marker = "Signature="
	idx := strings.LastIndex(authorization, marker)
	if idx < 0 {
		return nil, errors.New("sigv4: no signature in authorization value")
	}
	seed, err := hex.DecodeString(authorization[idx+len(marker):])
	if err != nil {
		return nil, fmt.Errorf("sigv4: malformed signature: %w", err)
	}
	return seed, nil
}

func canonicalURI(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		return "/"
	}
	return p
}

func hostValue(u *url.URL) string {
	host := u.Host
	// Strip default ports; signed host must match what the client sends.
	switch u.Scheme {
	case "https", "wss":
		host = strings.TrimSuffix(host, ":443")
	case "http", "ws":
		host = strings.TrimSuffix(host, ":80")
	}
	return host
}

func canonicalizeHeaders(req *transport.Request) (block string, signed string) {
	values := map[string]string{"host": hostValue(req.URL)}
	for name, vs := range req.Header {
		lower := strings.ToLower(name)
		if lower == "authorization" || lower == "connection" {
			continue
		}
		values[lower] = strings.TrimSpace(strings.Join(vs, ","))
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(values[name])
		b.WriteByte('\n')
	}
	return b.String(), strings.Join(names, ";")
}

// canonicalQuery renders query parameters in sorted order with RFC 3986
// escaping, which url.Values.Encode almost but not quite produces.
func canonicalQuery(q url.Values) string {
	return encodeQuery(q)
}

func encodeQuery(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		vs := append([]string(nil), q[k]...)
		sort.Strings(vs)
		for _, v := range vs {
			parts = append(parts, escape(k)+"="+escape(v))
		}
	}
	return strings.Join(parts, "&")
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
