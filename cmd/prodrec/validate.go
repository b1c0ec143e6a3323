package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rushteam/prodrec/pkg/log"
)

var validateCommand = &cobra.Command{
	Use:   "validate",
	Short: "Check referential integrity of the configured snapshot.",
	Run: func(cmd *cobra.Command, _ []string) {
		settings := setup(cmd)
		ctx := context.Background()

		b, err := openBackend(ctx, settings)
		if err != nil {
			log.Logger().Fatal("failed to open data source", zap.Error(err))
		}
		defer b.Close()

		s, err := b.source.Load(ctx)
		if err != nil {
			log.Logger().Fatal("failed to load snapshot", zap.Error(err))
		}
		if err := s.Validate(); err != nil {
			log.Logger().Fatal("snapshot is invalid", zap.Error(err))
		}
		fmt.Printf("ok: %d users, %d products\n", len(s.Users()), len(s.Products()))
	},
}
