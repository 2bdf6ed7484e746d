package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/eleven-am/transcribe-stream/internal/audio"
	"github.com/eleven-am/transcribe-stream/internal/transport"
	"github.com/eleven-am/transcribe-stream/transcribe"
	"github.com/google/uuid"
)

func main() {
	var (
		region       = flag.String("region", envOr("AWS_REGION", "us-east-1"), "AWS region")
		language     = flag.String("language", "en-US", "language code of the source audio")
		sampleRate   = flag.Int("rate", 16000, "sample rate of the source audio in hertz")
		encoding     = flag.String("encoding", transcribe.MediaEncodingPCM, "media encoding: pcm, ogg-opus or flac")
		file         = flag.String("file", "", "PCM audio file to transcribe; reads stdin when empty")
		vocabulary   = flag.String("vocabulary", "", "custom vocabulary name")
		useWebSocket = flag.Bool("websocket", false, "connect over WebSocket instead of HTTP/2")
		showPartial  = flag.Bool("partial", false, "print partial results as they arrive")
	)
	flag.Parse()

	if err := run(*region, *language, *sampleRate, *encoding, *file, *vocabulary, *useWebSocket, *showPartial); err != nil {
		fmt.Fprintf(os.Stderr, "transcribe: %v\n", err)
		os.Exit(1)
	}
}

func run(region, language string, sampleRate int, encoding, file, vocabulary string, useWebSocket, showPartial bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var tr transport.Transport
	if useWebSocket {
		tr = transport.NewWebSocket(logger)
	} else {
		tr = transport.NewHTTP2(logger)
	}

	client, err := transcribe.New(transcribe.Config{
		Region:    region,
		Transport: tr,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	var source io.Reader = os.Stdin
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		source = f
	}

	// A caller-generated session id lets a retried run correlate with the
	// failed one service-side.
	session, err := client.StartStreamTranscription(ctx, &transcribe.StartStreamTranscriptionRequest{
		LanguageCode:         language,
		MediaSampleRateHertz: sampleRate,
		MediaEncoding:        encoding,
		VocabularyName:       vocabulary,
		SessionID:            uuid.NewString(),
	})
	if err != nil {
		return err
	}
	defer session.Close()

	done := make(chan error, 1)
	go func() { done <- printTranscripts(session.Transcripts, showPartial) }()

	pacer := audio.NewPacer(sampleRate, 1, 100)
	if err := pacer.Stream(ctx, source, session.Audio.Send); err != nil {
		session.Audio.Close()
		<-done
		return err
	}
	if err := session.Audio.Close(); err != nil {
		<-done
		return err
	}
	return <-done
}

func printTranscripts(transcripts *transcribe.TranscriptStream, showPartial bool) error {
	for {
		event, err := transcripts.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		for _, result := range event.Transcript.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			if result.IsPartial {
				if showPartial {
					fmt.Printf("[partial] %s\n", result.Alternatives[0].Transcript)
				}
				continue
			}
			fmt.Println(result.Alternatives[0].Transcript)
		}
	}
}

func envOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
