package bootstrap

import (
	"os"
	"strconv"
)

type Config struct {
	ServerAddr string

	AWSRegion        string
	EndpointOverride string
	UseWebSocket     bool

	Language           string
	SampleRateHz       int
	MediaEncoding      string
	SourceSampleRateHz int
	VocabularyName     string
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		EndpointOverride: getEnv("TRANSCRIBE_ENDPOINT", ""),
		UseWebSocket:     getEnv("TRANSCRIBE_WEBSOCKET", "false") == "true",

		Language:           getEnv("TRANSCRIBE_LANGUAGE", "en-US"),
		SampleRateHz:       getEnvInt("SAMPLE_RATE", 16000),
		MediaEncoding:      getEnv("MEDIA_ENCODING", "pcm"),
		SourceSampleRateHz: getEnvInt("SOURCE_SAMPLE_RATE", 0),
		VocabularyName:     getEnv("VOCABULARY_NAME", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
