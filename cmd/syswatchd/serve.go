package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baikal/syswatch/internal/adapter/embedder"
	"github.com/baikal/syswatch/internal/adapter/llm"
	"github.com/baikal/syswatch/internal/adapter/rag"
	"github.com/baikal/syswatch/internal/adapter/vectorindex"
	"github.com/baikal/syswatch/internal/collector"
	"github.com/baikal/syswatch/internal/config"
	"github.com/baikal/syswatch/internal/logging"
	"github.com/baikal/syswatch/internal/rpc"
	"github.com/baikal/syswatch/internal/scheduler"
	"github.com/baikal/syswatch/internal/writer"
)

// startupTimeout bounds dialing SQL and applying migrations before the
// daemon gives up and reports a startup failure (spec.md §6).
const startupTimeout = 30 * time.Second

// runServe wires collector, writer, scheduler, and RPC server together
// and blocks until SIGINT/SIGTERM, at which point every component is
// given its documented shutdown grace (spec.md §5 "Cancellation").
func runServe() error {
	cfg := config.Load()
	logging.Init(logging.Config{Level: "info"})
	log := logging.WithComponent("main")

	c, err := collector.New()
	if err != nil {
		// Unsupported OS at factory time is fatal per spec.md §6.
		log.Error().Err(err).Msg("no collector available for this platform")
		return err
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), startupTimeout)
	defer cancelStartup()

	sqlStore, err := writer.OpenSQLStore(startupCtx, cfg.SQLDSN)
	if err != nil {
		log.Error().Err(err).Msg("failed to open SQL store")
		return fmt.Errorf("sql store: %w", err)
	}

	vectorSink := writer.NewVectorSink(embedder.New(cfg.OllamaBaseURL), vectorindex.New(cfg.ChromaURL))

	w := writer.New(sqlStore, vectorSink, writer.DefaultQueueCapacity)

	sched := scheduler.New(c, w)

	ragEngine := rag.New(vectorindex.New(cfg.ChromaURL), embedder.New(cfg.OllamaBaseURL), llm.New(cfg.OllamaBaseURL))

	rpcServer := rpc.NewServer(version, rpc.Deps{
		Query: w,
		RAG:   ragEngine,
		Cfg:   cfg,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()
	defer signal.Stop(sigCh)

	writerDone := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(writerDone)
	}()

	sched.Start(ctx)

	rpcErrCh := make(chan error, 1)
	go func() {
		rpcErrCh <- rpcServer.Start(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-rpcErrCh:
		if err != nil {
			log.Error().Err(err).Msg("rpc server failed")
			cancel()
			sched.Stop()
			<-writerDone
			return err
		}
	}

	sched.Stop()
	<-writerDone

	log.Info().Msg("clean shutdown")
	return nil
}
