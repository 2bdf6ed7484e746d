package transcribe

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/eleven-am/transcribe-stream/internal/transport"
)

// serviceErrorBody is the JSON shape of handshake error bodies and
// exception frame payloads. The service is inconsistent about casing.
type serviceErrorBody struct {
	Type         string `json:"__type"`
	Message      string `json:"Message"`
	LowerMessage string `json:"message"`
}

func (b serviceErrorBody) message() string {
	if b.Message != "" {
		return b.Message
	}
	return b.LowerMessage
}

// parseHandshakeError turns a >=400 handshake response into a typed
// service error. The error code comes from the x-amzn-errortype header
// when present, otherwise from the body's __type member; both may carry
// namespace or URI suffixes that are stripped.
func parseHandshakeError(meta transport.ResponseMetadata, body []byte) error {
	var parsed serviceErrorBody
	// A body that fails to parse still yields a typed error from headers.
	json.Unmarshal(body, &parsed)

	code := meta.Header.Get("x-amzn-errortype")
	if code == "" {
		code = parsed.Type
	}
	code = cleanErrorCode(code)
	if code == "" {
		return &ProtocolError{
			Message:    "unrecognized error response: " + strings.TrimSpace(string(body)),
			StatusCode: meta.StatusCode,
		}
	}

	msg := parsed.message()
	if msg == "" {
		msg = "request failed"
	}
	return &ServiceError{Code: code, Message: msg, StatusCode: meta.StatusCode}
}

// cleanErrorCode strips "namespace#Code:extra" decorations down to Code.
func cleanErrorCode(code string) string {
	if i := strings.Index(code, ":"); i >= 0 {
		code = code[:i]
	}
	if i := strings.LastIndex(code, "#"); i >= 0 {
		code = code[i+1:]
	}
	return code
}

func parseStartResponse(meta transport.ResponseMetadata) *StartStreamTranscriptionResponse {
	get := func(name string) string { return meta.Header.Get(name) }
	atoi := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	return &StartStreamTranscriptionResponse{
		RequestID:                   get("x-amzn-request-id"),
		LanguageCode:                get(paramLanguageCode),
		MediaSampleRateHertz:        atoi(get(paramSampleRate)),
		MediaEncoding:               get(paramMediaEncoding),
		SessionID:                   get(paramSessionID),
		VocabularyName:              get(paramVocabularyName),
		VocabularyFilterName:        get(paramVocabFilterName),
		VocabularyFilterMethod:      get(paramVocabFilterMethod),
		ShowSpeakerLabel:            get(paramShowSpeakerLabel) == "true",
		EnableChannelIdentification: get(paramChannelIdentify) == "true",
		NumberOfChannels:            atoi(get(paramNumberOfChannels)),
	}
}
