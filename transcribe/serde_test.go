package transcribe

import (
	"errors"
	"net/http"
	"testing"

	"github.com/eleven-am/transcribe-stream/internal/endpoints"
	"github.com/eleven-am/transcribe-stream/internal/transport"
)

var testEndpoint = endpoints.Endpoint{Host: "transcribestreaming.us-east-1.amazonaws.com", Port: 443}

func TestBuildHandshakeHeaders(t *testing.T) {
	req := validRequest()
	req.VocabularyName = "jargon"
	req.SessionID = "sess-1"
	req.VocabularyFilterMethod = VocabularyFilterMask
	req.VocabularyFilterName = "profanity"
	req.ShowSpeakerLabel = true

	h := buildHandshake(req, testEndpoint, transport.ModeSignedHeader)

	if h.Method != http.MethodPost {
		t.Errorf("method = %q", h.Method)
	}
	if h.URL.Scheme != "https" || h.URL.Path != "/stream-transcription" {
		t.Errorf("url = %q", h.URL)
	}
	if h.Body == nil || h.Body.Closed() {
		t.Fatal("handshake must carry an open streaming body")
	}

	want := map[string]string{
		"Content-Type":         eventStreamContentType,
		paramLanguageCode:      "en-US",
		paramSampleRate:        "16000",
		paramMediaEncoding:     "pcm",
		paramVocabularyName:    "jargon",
		paramSessionID:         "sess-1",
		paramVocabFilterMethod: "mask",
		paramVocabFilterName:   "profanity",
		paramShowSpeakerLabel:  "true",
	}
	for name, value := range want {
		if got := h.Header.Get(name); got != value {
			t.Errorf("header %s = %q, want %q", name, got, value)
		}
	}
	for _, absent := range []string{paramChannelIdentify, paramNumberOfChannels, paramMedicalSpecialty} {
		if h.Header.Get(absent) != "" {
			t.Errorf("header %s should be unset", absent)
		}
	}
}

func TestBuildHandshakeMedicalPath(t *testing.T) {
	req := validRequest()
	req.Medical = &MedicalOptions{Specialty: "CARDIOLOGY", Type: "CONVERSATION"}

	h := buildHandshake(req, testEndpoint, transport.ModeSignedHeader)
	if h.URL.Path != "/medical-stream-transcription" {
		t.Errorf("path = %q", h.URL.Path)
	}
	if h.Header.Get(paramMedicalSpecialty) != "CARDIOLOGY" || h.Header.Get(paramMedicalType) != "CONVERSATION" {
		t.Error("medical parameters missing from headers")
	}
}

func TestBuildHandshakePresignedQuery(t *testing.T) {
	req := validRequest()
	req.EnableChannelIdentification = true
	req.NumberOfChannels = 2

	h := buildHandshake(req, testEndpoint, transport.ModePresignedURL)

	if h.Method != http.MethodGet {
		t.Errorf("method = %q, want GET", h.Method)
	}
	if h.URL.Scheme != "wss" {
		t.Errorf("scheme = %q, want wss", h.URL.Scheme)
	}
	q := h.URL.Query()
	if q.Get(paramLanguageCode) != "en-US" || q.Get(paramSampleRate) != "16000" {
		t.Errorf("query missing session params: %q", h.URL.RawQuery)
	}
	if q.Get(paramChannelIdentify) != "true" || q.Get(paramNumberOfChannels) != "2" {
		t.Error("channel params missing from query")
	}
	if h.Header.Get(paramLanguageCode) != "" {
		t.Error("session params must not ride in headers for presigned handshakes")
	}
	if len(h.Header) != 0 {
		t.Errorf("presigned handshake carries headers the dialer never transmits: %v", h.Header)
	}
}

func TestParseHandshakeError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		header    http.Header
		body      string
		wantCode  string
		wantMsg   string
		wantProto bool
	}{
		{
			name:     "code from body type",
			status:   400,
			body:     `{"__type":"BadRequestException","Message":"bad language code"}`,
			wantCode: "BadRequestException",
			wantMsg:  "bad language code",
		},
		{
			name:     "namespaced body type",
			status:   400,
			body:     `{"__type":"com.amazon.coral.service#SerializationException"}`,
			wantCode: "SerializationException",
			wantMsg:  "request failed",
		},
		{
			name:   "header takes precedence",
			status: 403,
			header: http.Header{"X-Amzn-Errortype": []string{"AccessDeniedException:http://internal/"}},
			body:   `{"__type":"SomethingElse","message":"denied"}`,
			wantCode: "AccessDeniedException",
			wantMsg:  "denied",
		},
		{
			name:      "no code anywhere",
			status:    500,
			body:      `<html>gateway exploded</html>`,
			wantProto: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.header
			if header == nil {
				header = http.Header{}
			}
			err := parseHandshakeError(transport.ResponseMetadata{StatusCode: tt.status, Header: header}, []byte(tt.body))

			if tt.wantProto {
				var perr *ProtocolError
				if !errors.As(err, &perr) {
					t.Fatalf("err = %v, want *ProtocolError", err)
				}
				if perr.StatusCode != tt.status {
					t.Errorf("StatusCode = %d, want %d", perr.StatusCode, tt.status)
				}
				return
			}

			var serr *ServiceError
			if !errors.As(err, &serr) {
				t.Fatalf("err = %v, want *ServiceError", err)
			}
			if serr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", serr.Code, tt.wantCode)
			}
			if serr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", serr.Message, tt.wantMsg)
			}
			if serr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", serr.StatusCode, tt.status)
			}
		})
	}
}

func TestParseStartResponse(t *testing.T) {
	header := http.Header{}
	header.Set("x-amzn-request-id", "req-42")
	header.Set(paramLanguageCode, "en-US")
	header.Set(paramSampleRate, "16000")
	header.Set(paramMediaEncoding, "pcm")
	header.Set(paramSessionID, "sess-generated")
	header.Set(paramShowSpeakerLabel, "true")

	resp := parseStartResponse(transport.ResponseMetadata{StatusCode: 200, Header: header})

	if resp.RequestID != "req-42" {
		t.Errorf("RequestID = %q", resp.RequestID)
	}
	if resp.LanguageCode != "en-US" || resp.MediaSampleRateHertz != 16000 || resp.MediaEncoding != "pcm" {
		t.Errorf("echoed media params wrong: %+v", resp)
	}
	if resp.SessionID != "sess-generated" {
		t.Errorf("SessionID = %q", resp.SessionID)
	}
	if !resp.ShowSpeakerLabel || resp.EnableChannelIdentification {
		t.Errorf("flags wrong: %+v", resp)
	}
}
