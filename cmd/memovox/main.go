package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/memovox/memovox/internal/audioproc"
	"github.com/memovox/memovox/internal/billing"
	"github.com/memovox/memovox/internal/config"
	"github.com/memovox/memovox/internal/events"
	"github.com/memovox/memovox/internal/gdrive"
	"github.com/memovox/memovox/internal/logging"
	"github.com/memovox/memovox/internal/pipeline"
	"github.com/memovox/memovox/internal/server"
	"github.com/memovox/memovox/internal/storage"
	"github.com/memovox/memovox/internal/summarizer"
	"github.com/memovox/memovox/internal/transcriber"
)

// localAuth stands in for the account sign-in of the hosted product. A
// single-user deployment is always signed in.
type localAuth struct{}

func (localAuth) Login(ctx context.Context) error { return nil }

// autoTopUp credits the account by a fixed amount whenever the balance
// falls short, replacing the interactive purchase flow. With amount 0 it
// declines every request.
type autoTopUp struct {
	store  billing.AccountStore
	amount int64
}

func (t autoTopUp) RequestTopUp(ctx context.Context, missing int64) error {
	if t.amount <= 0 {
		log.Info().Int64("missing", missing).Msg("top-up declined: automatic top-up disabled")
		return nil
	}
	amount := t.amount
	for amount < missing {
		amount += t.amount
	}
	entry := billing.UsageEntry{Action: billing.ActionTopUp, Amount: amount, Note: "automatic top-up", Timestamp: time.Now().UTC()}
	if err := t.store.Credit(amount, entry); err != nil {
		return err
	}
	log.Info().Int64("amount", amount).Msg("account topped up automatically")
	return nil
}

func main() {
	configPath := flag.String("config", "memovox.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logging.Init(cfg.Log)
	log.Info().Str("config", *configPath).Msg("memovox starting")
	for _, w := range warnings {
		log.Warn().Msg(w)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("storage init failed")
	}
	defer func() { _ = store.Close() }()

	pricing := billing.Pricing{
		UnitSeconds: cfg.UnitSeconds,
		CostPerUnit: cfg.CostPerUnit,
		FixedAICost: cfg.FixedAICost,
	}
	ledger := billing.NewLedger(store, localAuth{}, autoTopUp{store: store, amount: cfg.AutoTopUpCredits}, pricing)

	publisher := events.New(cfg.Kafka)
	defer func() { _ = publisher.Close() }()

	var stt pipeline.SpeechToText
	sttKey := cfg.OpenAIAPIKey
	if cfg.Transcriber.Provider == "deepgram" {
		sttKey = cfg.DeepgramAPIKey
	}
	if sttKey != "" {
		stt, err = transcriber.New(cfg.Transcriber.Provider, sttKey, cfg.Transcriber.Model)
		if err != nil {
			log.Fatal().Err(err).Msg("transcriber init failed")
		}
	} else {
		stt = transcriber.Unconfigured{}
	}

	var summaries pipeline.SummaryClient
	if cfg.OpenAIAPIKey != "" {
		summaries = summarizer.New(cfg.Summarization, summarizer.NewOpenAICompleter(cfg.OpenAIAPIKey))
	} else {
		summaries = summarizer.Unconfigured{}
	}

	audio := audioproc.NewFFmpeg(cfg.AudioDir)
	planner := pipeline.NewPlanner(audio, cfg.SegmentLengthSec)
	hub := server.NewHub()
	ledger.SetPublisher(billing.MultiPublisher{publisher, hub})

	pipe := pipeline.New(store, ledger, planner, stt, summaries, hub, pipeline.Options{
		SegmentLengthSec:      cfg.SegmentLengthSec,
		ShortContentThreshold: cfg.ShortContentThreshold,
		SummaryModes:          cfg.SummaryModes(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.GDriveFolderID != "" {
		archiver, archErr := gdrive.NewArchiver(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if archErr != nil {
			log.Warn().Err(archErr).Msg("gdrive archiving disabled")
		} else {
			pipe.SetArchiver(archiver)
		}
	}

	handler := server.Handler(hub, pipe, ledger, server.Options{
		Modes:    cfg.SummaryModes(),
		Warnings: warnings,
	})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info().Msg("memovox shutting down")
		cancel()
	}()

	if err := server.Serve(ctx, cfg.ListenAddr, handler); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
