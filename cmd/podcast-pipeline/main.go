// main package for the podcast-pipeline CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-pipeline/internal/assemble"
	"github.com/book-expert/podcast-pipeline/internal/config"
	"github.com/book-expert/podcast-pipeline/internal/core"
	"github.com/book-expert/podcast-pipeline/internal/extract"
	"github.com/book-expert/podcast-pipeline/internal/extract/ocrclient"
	"github.com/book-expert/podcast-pipeline/internal/objectstore"
	"github.com/book-expert/podcast-pipeline/internal/pipeline"
	"github.com/book-expert/podcast-pipeline/internal/script"
	"github.com/book-expert/podcast-pipeline/internal/scriptgen"
	"github.com/book-expert/podcast-pipeline/internal/scriptgen/chatclient"
	"github.com/book-expert/podcast-pipeline/internal/stage"
	"github.com/book-expert/podcast-pipeline/internal/synth"
	"github.com/book-expert/podcast-pipeline/internal/synth/ttsclient"
	"github.com/book-expert/podcast-pipeline/internal/voice"
	"github.com/nats-io/nats.go"
)

// Exit codes by failing stage.
const (
	exitOK         = 0
	exitExtraction = 1
	exitScripting  = 2
	exitSynthesis  = 3
	exitAssembly   = 4
	exitCancelled  = 5
)

const outputFilePermissions = 0o600

// ErrUnsupportedInput indicates the input file extension could not be mapped
// to a media kind.
var ErrUnsupportedInput = errors.New("unsupported input format")

type flags struct {
	input    string
	output   string
	kind     string
	docType  string
	tone     string
	language string
}

func parseFlags() flags {
	var parsed flags

	flag.StringVar(&parsed.input, "input", "", "path to the source document (PDF or image)")
	flag.StringVar(&parsed.output, "output", "podcast.wav", "path for the generated audio")
	flag.StringVar(&parsed.kind, "kind", "", "media kind override: pdf or image")
	flag.StringVar(&parsed.docType, "type", "", "document type: research_article, review_article, case_study")
	flag.StringVar(&parsed.tone, "tone", "", "conversation tone, e.g. analytical")
	flag.StringVar(&parsed.language, "language", "", "script language")
	flag.Parse()

	return parsed
}

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "podcast-pipeline.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func mediaKind(inputPath, override string) (core.MediaKind, error) {
	if override != "" {
		switch core.MediaKind(override) {
		case core.KindPDF, core.KindImage:
			return core.MediaKind(override), nil
		}

		return "", fmt.Errorf("%w: '%s'", ErrUnsupportedInput, override)
	}

	switch strings.ToLower(filepath.Ext(inputPath)) {
	case ".pdf":
		return core.KindPDF, nil
	case ".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif":
		return core.KindImage, nil
	default:
		return "", fmt.Errorf("%w: '%s'", ErrUnsupportedInput, filepath.Ext(inputPath))
	}
}

// buildClients constructs the HTTP adapters for the three capability
// services from configuration.
func buildClients(cfg *config.Config) (*ocrclient.Client, *chatclient.Client, *ttsclient.Client) {
	ocr := ocrclient.New(
		cfg.Extractor.BaseURL,
		cfg.Extractor.Model,
		time.Duration(cfg.Extractor.TimeoutSeconds)*time.Second,
	)

	chat := chatclient.New(
		cfg.Scriptwriter.BaseURL,
		cfg.Scriptwriter.APIKey,
		cfg.Scriptwriter.Model,
		time.Duration(cfg.Scriptwriter.TimeoutSeconds)*time.Second,
	)

	tts := ttsclient.New(
		cfg.TTS.BaseURL,
		cfg.TTS.Temperature,
		time.Duration(cfg.TTS.TimeoutSeconds)*time.Second,
	)

	return ocr, chat, tts
}

// checkServices verifies the OCR and TTS services are reachable before any
// work starts, so a run fails fast instead of burning retries mid-pipeline.
// Failures map to the exit code of the stage the service serves.
func checkServices(ctx context.Context, ocr *ocrclient.Client, tts *ttsclient.Client) (int, error) {
	err := ocr.HealthCheck(ctx)
	if err != nil {
		return exitExtraction, fmt.Errorf("OCR service is not healthy: %w", err)
	}

	err = tts.HealthCheck(ctx)
	if err != nil {
		return exitSynthesis, fmt.Errorf("TTS service is not healthy: %w", err)
	}

	return exitOK, nil
}

// buildPipeline wires the capability clients, the voice registry, and the
// stages from configuration.
func buildPipeline(
	cfg *config.Config,
	extractor core.TextExtractor,
	generator core.ScriptGenerator,
	synthesizer core.Synthesizer,
	log *logger.Logger,
) (*pipeline.Pipeline, error) {
	registry := voice.NewRegistry(log)
	for _, voiceCfg := range cfg.Voices {
		registry.Register(core.VoiceProfile{
			SpeakerID:  voiceCfg.Speaker,
			Voice:      voiceCfg.Voice,
			Language:   voiceCfg.Language,
			RefPath:    voiceCfg.RefPath,
			SampleRate: cfg.Pipeline.SampleRate,
		})
	}

	runner := stage.NewRunner(stage.Options{
		MaxAttempts:     cfg.Pipeline.RetryAttempts,
		CacheEnabled:    cfg.Pipeline.CacheEnabled,
		CacheMaxEntries: cfg.Pipeline.CacheMaxEntries,
		InitialInterval: 0,
	}, log)

	extractStage := extract.NewStage(extractor, runner, log)

	scriptwriter := scriptgen.NewStage(
		generator,
		runner,
		registry,
		script.Limits{
			MaxTurns:     cfg.Pipeline.MaxTurns,
			MaxTurnChars: cfg.Pipeline.MaxTurnChars,
		},
		log,
	)

	settings := assemble.NewDefaultSettings()
	settings.SampleRate = cfg.Pipeline.SampleRate
	settings.LeadIn = time.Duration(cfg.Pipeline.LeadInMs) * time.Millisecond
	settings.TurnGap = time.Duration(cfg.Pipeline.TurnGapMs) * time.Millisecond
	settings.SubTurnGap = time.Duration(cfg.Pipeline.SubTurnGapMs) * time.Millisecond
	settings.Tail = time.Duration(cfg.Pipeline.TailMs) * time.Millisecond

	synthStage := synth.NewStage(
		synthesizer,
		runner,
		synth.Options{
			Workers:             cfg.Pipeline.Workers,
			MaxTurnChars:        cfg.Pipeline.MaxTurnChars,
			IntraTurnGapSamples: settings.SampleRate * cfg.Pipeline.SubTurnGapMs / 1000,
		},
		log,
	)

	assembler, err := assemble.New(settings, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create assembler: %w", err)
	}

	return pipeline.New(extractStage, scriptwriter, synthStage, assembler, log), nil
}

// persistArtifact uploads the artifact to the configured NATS object store.
func persistArtifact(
	ctx context.Context,
	cfg *config.Config,
	runID string,
	artifact *core.PodcastArtifact,
	log *logger.Logger,
) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to open artifact store: %w", err)
	}

	audioKey, err := store.SaveArtifact(ctx, runID, artifact)
	if err != nil {
		return fmt.Errorf("failed to persist artifact: %w", err)
	}

	log.Info("Artifact persisted as '%s'", audioKey)

	return nil
}

// exitCode maps a failed run to the CLI exit code contract.
func exitCode(status pipeline.Status) int {
	if status.Cause != nil && errors.Is(status.Cause, pipeline.ErrCancelled) {
		return exitCancelled
	}

	switch pipeline.State(status.FailedStage) {
	case pipeline.StateExtracting:
		return exitExtraction
	case pipeline.StateScripting:
		return exitScripting
	case pipeline.StateSynthesizing:
		return exitSynthesis
	case pipeline.StateAssembling:
		return exitAssembly
	default:
		return exitExtraction
	}
}

func run(ctx context.Context, parsed flags, log *logger.Logger) (int, error) {
	cfg, err := config.Load(log)
	if err != nil {
		return exitExtraction, fmt.Errorf("failed to load configuration: %w", err)
	}

	kind, err := mediaKind(parsed.input, parsed.kind)
	if err != nil {
		return exitExtraction, err
	}

	documentBytes, err := os.ReadFile(parsed.input)
	if err != nil {
		return exitExtraction, fmt.Errorf("failed to read input document: %w", err)
	}

	ocr, chat, tts := buildClients(cfg)

	code, err := checkServices(ctx, ocr, tts)
	if err != nil {
		return code, err
	}

	converter, err := buildPipeline(cfg, ocr, chat, tts, log)
	if err != nil {
		return exitExtraction, err
	}

	style := core.StyleConfig{
		DocumentType: firstNonEmpty(parsed.docType, cfg.Scriptwriter.DocumentType),
		Tone:         firstNonEmpty(parsed.tone, cfg.Scriptwriter.Tone),
		Language:     firstNonEmpty(parsed.language, cfg.Scriptwriter.Language),
		TargetTurns:  cfg.Scriptwriter.TargetTurns,
	}

	artifact, err := converter.Run(ctx, core.Document{Bytes: documentBytes, Kind: kind}, style)
	if err != nil {
		status := converter.Status()

		return exitCode(status), fmt.Errorf(
			"run failed at stage '%s': %w", status.FailedStage, err,
		)
	}

	err = os.WriteFile(parsed.output, artifact.WAV, outputFilePermissions)
	if err != nil {
		return exitAssembly, fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info("Wrote %s (%s of audio, %d turns)",
		parsed.output, artifact.Duration, len(artifact.Manifest))

	if cfg.NATS.URL != "" {
		persistErr := persistArtifact(ctx, cfg, converter.Status().RunID, artifact, log)
		if persistErr != nil {
			log.Warn("Artifact persistence failed: %v", persistErr)
		}
	}

	return exitOK, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}

	return ""
}

func realMain() int {
	parsed := parseFlags()

	if parsed.input == "" {
		fmt.Fprintln(os.Stderr, "usage: podcast-pipeline -input document.pdf [-output podcast.wav]")

		return exitExtraction
	}

	log, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create logger: %v\n", err)

		return exitExtraction
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := run(ctx, parsed, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "podcast-pipeline: %v\n", err)
	}

	return code
}

func main() {
	os.Exit(realMain())
}
