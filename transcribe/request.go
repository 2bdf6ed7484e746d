package transcribe

// Media encodings accepted by the streaming service.
const (
	MediaEncodingPCM     = "pcm"
	MediaEncodingOggOpus = "ogg-opus"
	MediaEncodingFLAC    = "flac"
)

// Vocabulary filter methods.
const (
	VocabularyFilterRemove = "remove"
	VocabularyFilterMask   = "mask"
	VocabularyFilterTag    = "tag"
)

// MedicalOptions selects the medical transcription variant and carries its
// extra required fields.
type MedicalOptions struct {
	// Specialty of the dictating clinician, e.g. "PRIMARYCARE".
	Specialty string
	// Type of input audio: "CONVERSATION" or "DICTATION".
	Type string
}

// StartStreamTranscriptionRequest holds the negotiated parameters for one
// streaming session. Values are validated once, before any network
// activity; the request is never mutated by the session builder.
type StartStreamTranscriptionRequest struct {
	// LanguageCode of the source audio, e.g. "en-US". Required.
	LanguageCode string
	// MediaSampleRateHertz of the source audio. Required, positive.
	MediaSampleRateHertz int
	// MediaEncoding of the source audio. Required.
	MediaEncoding string

	// VocabularyName selects a custom vocabulary.
	VocabularyName string
	// SessionID identifies the session for caller-driven retries. The
	// service generates one when empty and returns it in the response.
	SessionID string
	// VocabularyFilterMethod and VocabularyFilterName select a vocabulary
	// filter and how it is applied.
	VocabularyFilterMethod string
	VocabularyFilterName   string
	// ShowSpeakerLabel enables speaker identification. Mutually exclusive
	// with EnableChannelIdentification.
	ShowSpeakerLabel bool
	// EnableChannelIdentification transcribes each channel separately.
	EnableChannelIdentification bool
	// NumberOfChannels in the source audio; only meaningful with channel
	// identification.
	NumberOfChannels int

	// Medical selects the medical variant when non-nil.
	Medical *MedicalOptions
}

// Validate rejects invalid parameter combinations. All failures are
// *ValidationError values.
func (r *StartStreamTranscriptionRequest) Validate() error {
	if r.LanguageCode == "" {
		return &ValidationError{Message: "language code is required"}
	}
	if r.MediaSampleRateHertz <= 0 {
		return &ValidationError{Message: "media sample rate must be a positive number of hertz"}
	}
	if r.MediaEncoding == "" {
		return &ValidationError{Message: "media encoding is required"}
	}
	if r.ShowSpeakerLabel && r.EnableChannelIdentification {
		return &ValidationError{Message: "show speaker label and channel identification cannot both be set"}
	}
	if r.NumberOfChannels != 0 {
		if !r.EnableChannelIdentification {
			return &ValidationError{Message: "number of channels requires channel identification"}
		}
		if r.NumberOfChannels < 2 {
			return &ValidationError{Message: "number of channels must be at least 2"}
		}
	}
	if r.VocabularyFilterMethod != "" && r.VocabularyFilterName == "" {
		return &ValidationError{Message: "vocabulary filter method requires a vocabulary filter name"}
	}
	if r.Medical != nil {
		if r.Medical.Specialty == "" {
			return &ValidationError{Message: "medical specialty is required"}
		}
		if r.Medical.Type == "" {
			return &ValidationError{Message: "medical audio type is required"}
		}
	}
	return nil
}
