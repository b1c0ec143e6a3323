package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rushteam/prodrec/config"
	"github.com/rushteam/prodrec/engine"
	"github.com/rushteam/prodrec/pipeline"
	"github.com/rushteam/prodrec/pkg/log"
	"github.com/rushteam/prodrec/server"
	"github.com/rushteam/prodrec/tracker"
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP recommendation service.",
	Run: func(cmd *cobra.Command, _ []string) {
		settings := setup(cmd)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b, err := openBackend(ctx, settings)
		if err != nil {
			log.Logger().Fatal("failed to open data source", zap.Error(err))
		}
		defer b.Close()

		trackerOpts := []tracker.Option{
			tracker.WithStore(b.store, settings.Data.InteractionsKey),
			tracker.WithPopularityKey(settings.Data.PopularKey),
		}
		if b.writer != nil {
			trackerOpts = append(trackerOpts, tracker.WithWriteBack(b.source, b.writer))
		}
		tr := tracker.New(trackerOpts...)
		if base, err := b.source.Load(ctx); err != nil {
			log.Logger().Warn("failed to load base snapshot", zap.Error(err))
		} else {
			tr.Seed(base)
		}
		if err := tr.Load(ctx); err != nil {
			log.Logger().Warn("failed to load tracked interactions", zap.Error(err))
		}

		e := engine.New(&tracker.Source{Base: b.source, Tracker: tr},
			engine.WithRecallConfig(settings),
			engine.WithPoolSize(settings.Recommend.PoolSize),
			engine.WithStore(b.store, settings.Data.PopularKey))
		if err := e.Rebuild(ctx); err != nil {
			// 没有可用模型时接口返回空列表，等待下一次 rebuild
			log.Logger().Error("initial rebuild failed", zap.Error(err))
		}
		go e.Loop(ctx, settings.Recommend.RebuildInterval)

		var opts []server.Option
		if settings.Recommend.Pipeline != "" {
			cfg, err := loadPipeline(settings.Recommend.Pipeline)
			if err != nil {
				log.Logger().Fatal("failed to load pipeline", zap.String("path", settings.Recommend.Pipeline), zap.Error(err))
			}
			if err := config.ValidatePipelineConfig(cfg, e.Factory(nil)); err != nil {
				log.Logger().Fatal("invalid pipeline", zap.Error(err))
			}
			opts = append(opts, server.WithPipeline(cfg))
		}

		if err := server.New(e, tr, opts...).ListenAndServe(ctx, settings.Server.Addr); err != nil {
			log.Logger().Fatal("http server stopped", zap.Error(err))
		}
	},
}

func init() {
	serveCommand.Flags().String("server.addr", "", "listen address")
}

func loadPipeline(path string) (*pipeline.Config, error) {
	if filepath.Ext(path) == ".json" {
		return pipeline.LoadFromJSON(path)
	}
	return pipeline.LoadFromYAML(path)
}
