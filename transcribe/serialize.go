package transcribe

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/eleven-am/transcribe-stream/internal/endpoints"
	"github.com/eleven-am/transcribe-stream/internal/transport"
)

const (
	eventStreamContentType = "application/vnd.amazon.eventstream"

	standardPath = "/stream-transcription"
	medicalPath  = "/medical-stream-transcription"
)

// Session parameter names. Header-cased for the signed-header handshake;
// the presigned-URL handshake carries the same names as query parameters.
const (
	paramLanguageCode      = "x-amzn-transcribe-language-code"
	paramSampleRate        = "x-amzn-transcribe-sample-rate"
	paramMediaEncoding     = "x-amzn-transcribe-media-encoding"
	paramVocabularyName    = "x-amzn-transcribe-vocabulary-name"
	paramSessionID         = "x-amzn-transcribe-session-id"
	paramVocabFilterMethod = "x-amzn-transcribe-vocabulary-filter-method"
	paramVocabFilterName   = "x-amzn-transcribe-vocabulary-filter-name"
	paramShowSpeakerLabel  = "x-amzn-transcribe-show-speaker-label"
	paramChannelIdentify   = "x-amzn-transcribe-enable-channel-identification"
	paramNumberOfChannels  = "x-amzn-transcribe-number-of-channels"
	paramMedicalSpecialty  = "x-amzn-transcribe-specialty"
	paramMedicalType       = "x-amzn-transcribe-type"
)

// buildHandshake constructs the canonical outbound request for a session:
// target URI, method, parameter set, and a fresh streaming body handle.
// Mode decides whether parameters ride in headers (signed-header
// handshake) or in the query string (presigned URL handshake).
func buildHandshake(req *StartStreamTranscriptionRequest, ep endpoints.Endpoint, mode transport.Mode) *transport.Request {
	path := standardPath
	if req.Medical != nil {
		path = medicalPath
	}

	u := &url.URL{Scheme: "https", Host: ep.HostPort(), Path: path}
	method := http.MethodPost
	header := http.Header{}

	params := sessionParams(req)
	switch mode {
	case transport.ModePresignedURL:
		// The WebSocket dialer transmits no extra headers; everything
		// rides in the presigned query string.
		u.Scheme = "wss"
		method = http.MethodGet
		q := u.Query()
		for name, value := range params {
			q.Set(name, value)
		}
		u.RawQuery = q.Encode()
	default:
		header.Set("Content-Type", eventStreamContentType)
		for name, value := range params {
			header.Set(name, value)
		}
	}

	return &transport.Request{
		URL:    u,
		Method: method,
		Header: header,
		Body:   transport.NewStreamBody(),
	}
}

func sessionParams(req *StartStreamTranscriptionRequest) map[string]string {
	params := map[string]string{
		paramLanguageCode:  req.LanguageCode,
		paramSampleRate:    strconv.Itoa(req.MediaSampleRateHertz),
		paramMediaEncoding: req.MediaEncoding,
	}
	if req.VocabularyName != "" {
		params[paramVocabularyName] = req.VocabularyName
	}
	if req.SessionID != "" {
		params[paramSessionID] = req.SessionID
	}
	if req.VocabularyFilterMethod != "" {
		params[paramVocabFilterMethod] = req.VocabularyFilterMethod
	}
	if req.VocabularyFilterName != "" {
		params[paramVocabFilterName] = req.VocabularyFilterName
	}
	if req.ShowSpeakerLabel {
		params[paramShowSpeakerLabel] = "true"
	}
	if req.EnableChannelIdentification {
		params[paramChannelIdentify] = "true"
	}
	if req.NumberOfChannels != 0 {
		params[paramNumberOfChannels] = strconv.Itoa(req.NumberOfChannels)
	}
	if req.Medical != nil {
		params[paramMedicalSpecialty] = req.Medical.Specialty
		params[paramMedicalType] = req.Medical.Type
	}
	return params
}
