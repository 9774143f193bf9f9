package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	_ "github.com/xxxsen/ratrans/internal/vector/chroma"
	_ "github.com/xxxsen/ratrans/internal/vector/inmemory"
	_ "github.com/xxxsen/ratrans/internal/vector/postgres"
	_ "github.com/xxxsen/ratrans/internal/vector/qdrantvec"
	_ "github.com/xxxsen/ratrans/internal/vector/sqlitevec"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "ratrans",
		Short:         "retrieval-augmented translation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	rootCmd.AddCommand(
		newTranslateCmd(&configPath),
		newLanguagesCmd(),
		newLimitCmd(),
		newChunkCmd(&configPath),
		newProvidersCmd(&configPath),
		newCacheCmd(&configPath),
		newMemoryCmd(&configPath),
		newWorkerCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}
