package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rushteam/prodrec/engine"
	"github.com/rushteam/prodrec/pkg/log"
)

var recommendCommand = &cobra.Command{
	Use:   "recommend",
	Short: "Print recommendations for one user.",
	Run: func(cmd *cobra.Command, _ []string) {
		settings := setup(cmd)
		ctx := context.Background()
		flags := cmd.Flags()
		userID, _ := flags.GetString("user")
		mode, _ := flags.GetString("mode")
		n, _ := flags.GetInt("n")
		if !flags.Changed("n") {
			n = settings.DefaultTopN()
		}
		weight, _ := flags.GetFloat64("weight")
		if !flags.Changed("weight") {
			weight = settings.DefaultCollabWeight()
		}
		pipelinePath, _ := flags.GetString("pipeline")

		b, err := openBackend(ctx, settings)
		if err != nil {
			log.Logger().Fatal("failed to open data source", zap.Error(err))
		}
		defer b.Close()

		e := engine.New(b.source,
			engine.WithRecallConfig(settings),
			engine.WithPoolSize(settings.Recommend.PoolSize),
			engine.WithStore(b.store, settings.Data.PopularKey))
		if err := e.Rebuild(ctx); err != nil {
			log.Logger().Fatal("failed to build model", zap.Error(err))
		}

		g := e.Pin()
		var ids []string
		switch {
		case pipelinePath != "":
			cfg, err := loadPipeline(pipelinePath)
			if err != nil {
				log.Logger().Fatal("failed to load pipeline", zap.Error(err))
			}
			if ids, err = g.RunPipeline(ctx, cfg, userID, n); err != nil {
				log.Logger().Fatal("failed to run pipeline", zap.Error(err))
			}
		case mode == engine.ModeCollaborative:
			ids = g.Collaborative(ctx, userID, n)
		case mode == engine.ModeContent:
			ids = g.ContentBased(ctx, userID, n)
		case mode == engine.ModeHybrid:
			ids = g.Hybrid(ctx, userID, n, weight)
		default:
			log.Logger().Fatal("unknown mode", zap.String("mode", mode))
		}

		out, err := json.MarshalIndent(map[string]any{
			"user_id":  userID,
			"mode":     mode,
			"products": g.Products(ids),
		}, "", "  ")
		if err != nil {
			log.Logger().Fatal("failed to encode result", zap.Error(err))
		}
		fmt.Fprintln(os.Stdout, string(out))
	},
}

func init() {
	flags := recommendCommand.Flags()
	flags.StringP("user", "u", "", "user id")
	flags.StringP("mode", "m", engine.ModeHybrid, "hybrid, collaborative or content")
	flags.IntP("n", "n", 5, "number of products")
	flags.Float64P("weight", "w", 0.7, "collaborative weight for hybrid mode")
	flags.String("pipeline", "", "pipeline config file (yaml or json), overrides --mode")
	_ = recommendCommand.MarkFlagRequired("user")
}
