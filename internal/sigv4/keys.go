package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	algorithm        = "AWS4-HMAC-SHA256"
	payloadAlgorithm = "AWS4-HMAC-SHA256-PAYLOAD"

	// Payload hash placeholder for requests whose body is a live event
	// stream; the real payloads are signed per chunk instead.
	StreamingEventsPayloadHash = "STREAMING-AWS4-HMAC-SHA256-EVENTS"

	timeFormat = "20060102T150405Z"
	dateFormat = "20060102"
)

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// deriveSigningKey runs the dated HMAC chain that scopes a secret key to
// one day, region, and service.
func deriveSigningKey(secret, dateStamp, region, service string) []byte {
	k := hmacSHA256([]byte("AWS4"+secret), []byte(dateStamp))
	k = hmacSHA256(k, []byte(region))
	k = hmacSHA256(k, []byte(service))
	return hmacSHA256(k, []byte("aws4_request"))
}

func credentialScope(dateStamp, region, service string) string {
	return strings.Join([]string{dateStamp, region, service, "aws4_request"}, "/")
}
