package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ratrans/internal/ai"
	"github.com/xxxsen/ratrans/internal/embedcache"
	"github.com/xxxsen/ratrans/internal/job"
	"github.com/xxxsen/ratrans/internal/schedule"
	"github.com/xxxsen/ratrans/internal/translate"
	"github.com/xxxsen/ratrans/internal/validator"
)

func readInput(cmd *cobra.Command, file string) (string, error) {
	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return string(raw), nil
	}
	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(raw), nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTranslateCmd(configPath *string) *cobra.Command {
	var (
		lang     string
		username string
		file     string
		detailed bool
	)
	cmd := &cobra.Command{
		Use:   "translate",
		Short: "translate text from a file or stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := translate.ValidateLanguage(lang); err != nil {
				return err
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			text, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.orchestrator().TranslateDetailed(cmd.Context(), text, lang, username)
			if err != nil {
				return err
			}
			if detailed {
				return printJSON(cmd, res)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			return err
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "target language code")
	cmd.Flags().StringVar(&username, "user", "", "translation memory owner")
	cmd.Flags().StringVar(&file, "file", "", "input file, stdin when empty")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "print session details as json")
	_ = cmd.MarkFlagRequired("lang")
	return cmd
}

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "list supported target languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, l := range translate.SupportedLanguages() {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", l.Code, l.Name, l.NativeName, l.Strategy); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newLimitCmd() *cobra.Command {
	var (
		mode string
		file string
	)
	cmd := &cobra.Command{
		Use:   "limit",
		Short: "trim generated text to a mode's word limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			m := validator.ResolveMode(mode)
			out, words, trimmed := validator.EnforceLimit(cmd.Context(), text, m)
			if trimmed {
				fmt.Fprintf(cmd.ErrOrStderr(), "trimmed to %d words (max %d)\n", words, m.MaxWords)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "deep", "generation mode: quick or deep")
	cmd.Flags().StringVar(&file, "file", "", "input file, stdin when empty")
	return cmd
}

func newChunkCmd(configPath *string) *cobra.Command {
	var (
		file    string
		mode    string
		size    int
		overlap int
		target  int
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "show how text is split into translation units",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			text, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			c, err := newChunker(cfg)
			if err != nil {
				return err
			}
			switch mode {
			case "sentences":
				return printJSON(cmd, c.Split(cmd.Context(), text))
			case "windows":
				windows, err := c.Windows(cmd.Context(), text, size, overlap)
				if err != nil {
					return err
				}
				return printJSON(cmd, windows)
			case "paragraphs":
				return printJSON(cmd, c.Paragraphs(cmd.Context(), text, target, limit))
			default:
				return fmt.Errorf("unknown chunk mode %q", mode)
			}
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "input file, stdin when empty")
	cmd.Flags().StringVar(&mode, "mode", "sentences", "sentences, windows or paragraphs")
	cmd.Flags().IntVar(&size, "size", 4, "window size in sentences")
	cmd.Flags().IntVar(&overlap, "overlap", 1, "sentences shared by consecutive windows")
	cmd.Flags().IntVar(&target, "target", 0, "paragraph merge divisor")
	cmd.Flags().IntVar(&limit, "max", 0, "maximum paragraph chunks")
	return cmd
}

func newProvidersCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "list the provider waterfall",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			m, err := ai.NewManagerFromConfig(cfg.Providers)
			if err != nil {
				return err
			}
			return printJSON(cmd, m.Providers())
		},
	}
}

func newCacheCmd(configPath *string) *cobra.Command {
	open := func() (embedcache.Cache, error) {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return nil, err
		}
		cache, err := embedcache.New(cfg.EmbedCache)
		if err != nil {
			return nil, err
		}
		if cache == nil {
			return nil, fmt.Errorf("embedding cache is disabled")
		}
		return cache, nil
	}
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "inspect the embedding cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "show embedding cache stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := open()
			if err != nil {
				return err
			}
			st, err := cache.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	}, &cobra.Command{
		Use:   "clear",
		Short: "remove all cached embeddings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := open()
			if err != nil {
				return err
			}
			n, err := cache.Clear(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", n)
			return err
		},
	})
	return cmd
}

func newMemoryCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "inspect the translation memory",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "show translation memory stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			st, err := a.memory.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	})

	var username string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "delete one user's translation memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.memory.ClearUser(cmd.Context(), username)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d records for %s\n", n, username)
			return err
		},
	}
	clearCmd.Flags().StringVar(&username, "user", "", "memory owner")
	_ = clearCmd.MarkFlagRequired("user")
	cmd.AddCommand(clearCmd)
	return cmd
}

func newWorkerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "run scheduled maintenance jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			available := []schedule.Job{job.NewStatsJob(a.memory, a.cache)}
			if a.cache != nil {
				available = append(available, job.NewCacheClearJob(a.cache))
			}
			sched := schedule.NewCronScheduler()
			if err := sched.AddFromConfig(available, cfg.Jobs); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger := logutil.GetLogger(ctx)
			logger.Info("worker started", zap.Strings("jobs", sched.Jobs()))
			sched.Start(ctx)
			<-ctx.Done()
			sched.Stop()
			logger.Info("worker stopped")
			return nil
		},
	}
}
