package transcribe

// TranscriptEvent is one decoded transcript frame from the service.
// Immutable once produced.
type TranscriptEvent struct {
	Transcript Transcript `json:"Transcript"`
}

type Transcript struct {
	Results []Result `json:"Results"`
}

// Result is one utterance hypothesis. Partial results for the same
// ResultID are replaced by later frames until IsPartial goes false.
type Result struct {
	ResultID     string        `json:"ResultId"`
	StartTime    float64       `json:"StartTime"`
	EndTime      float64       `json:"EndTime"`
	IsPartial    bool          `json:"IsPartial"`
	ChannelID    string        `json:"ChannelId,omitempty"`
	Alternatives []Alternative `json:"Alternatives"`
}

type Alternative struct {
	Transcript string `json:"Transcript"`
	Items      []Item `json:"Items,omitempty"`
}

type Item struct {
	StartTime             float64  `json:"StartTime"`
	EndTime               float64  `json:"EndTime"`
	Type                  string   `json:"Type"`
	Content               string   `json:"Content"`
	VocabularyFilterMatch bool     `json:"VocabularyFilterMatch,omitempty"`
	Speaker               string   `json:"Speaker,omitempty"`
	Confidence            *float64 `json:"Confidence,omitempty"`
}

// StartStreamTranscriptionResponse carries the session parameters the
// service acknowledged in the handshake response headers.
type StartStreamTranscriptionResponse struct {
	RequestID                   string
	LanguageCode                string
	MediaSampleRateHertz        int
	MediaEncoding               string
	SessionID                   string
	VocabularyName              string
	VocabularyFilterName        string
	VocabularyFilterMethod      string
	ShowSpeakerLabel            bool
	EnableChannelIdentification bool
	NumberOfChannels            int
}
