package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"BtcInsight/internal/config"
	"BtcInsight/internal/model"
	"BtcInsight/internal/notifier"
	"BtcInsight/internal/recorder"
	"BtcInsight/internal/scheduler"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func parseSelection(names []string) (model.Selection, []string) {
	var parts []string
	for _, n := range names {
		parts = append(parts, strings.Split(n, ",")...)
	}
	return model.ParseSelection(parts)
}

func newRunCmd(cfg *config.Config) *cobra.Command {
	var indicators []string
	var question string
	var asJSON, noAI, promptOnly bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch prices, compute indicators and print one insight",
		Example: `  btcinsight run
  btcinsight run --indicators RSI,EMA_30 --question "Is momentum fading?"
  btcinsight run --no-ai --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if noAI || promptOnly {
				cfg.Inference.Disabled = true
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config validation: %w", err)
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, !noAI && !promptOnly)
			if err != nil {
				return err
			}
			defer a.Close()

			out := a.pipeline.Run(ctx, a.request(indicators, question))
			if err := a.recorder.RecordRun(recorder.RunFromOutcome(cfg.Asset.ID, out)); err != nil {
				log.Error().Err(err).Msg("record run")
			}

			w := cmd.OutOrStdout()
			switch {
			case asJSON:
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(out); err != nil {
					return fmt.Errorf("encode outcome: %w", err)
				}
			case promptOnly:
				fmt.Fprintln(w, out.Prompt)
			default:
				fmt.Fprintln(w, notifier.FormatReport(out))
			}
			return runError(out)
		},
	}
	cmd.Flags().StringSliceVarP(&indicators, "indicators", "i", nil, "indicators to compute (RSI, EMA_7, EMA_30, EMA_60, EMA_200)")
	cmd.Flags().StringVarP(&question, "question", "q", "", "question appended to the prompt")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the outcome as JSON")
	cmd.Flags().BoolVar(&noAI, "no-ai", false, "skip the inference call")
	cmd.Flags().BoolVar(&promptOnly, "prompt", false, "print the prompt instead of calling the model")
	return cmd
}

func newWatchCmd(cfg *config.Config) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh on a cron schedule and serve Telegram commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			if metricsAddr != "" {
				cfg.Metrics.Addr = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config validation: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			notifiers := notifier.Multi{notifier.NewConsoleNotifier(cmd.OutOrStdout())}
			var tn *notifier.TelegramNotifier
			if cfg.TelegramEnabled() {
				tn = notifier.NewTelegramNotifier(cfg.Telegram.BaseURL, cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
				notifiers = append(notifiers, tn)
			}

			sched := scheduler.NewScheduler(ctx, a.pipeline, a.recorder, notifiers, a.request(nil, ""))
			sched.Asset = cfg.Asset.ID
			if err := sched.Register(cfg.Schedule.RefreshCron); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			if cfg.Metrics.Addr != "" {
				go func() {
					if err := a.metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
						log.Error().Err(err).Msg("metrics server")
					}
				}()
			}
			if tn != nil {
				go tn.StartPolling(ctx, sched.HandleCommand)
				log.Info().Msg("telegram polling started")
			}
			if cfg.Schedule.RunOnStart {
				log.Info().Msg("run_on_start enabled, refreshing now")
				go sched.RunNow(ctx)
			}

			log.Info().Str("cron", cfg.Schedule.RefreshCron).Msg("btcinsight is running, press Ctrl+C to stop")
			<-ctx.Done()
			log.Info().Msg("shutdown signal received, stopping")
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func newHistoryCmd(cfg *config.Config) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(cfg.Database.SQLitePath); err != nil {
				return fmt.Errorf("no history at %s: %w", cfg.Database.SQLitePath, err)
			}
			rec, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
			if err != nil {
				return err
			}
			defer rec.Close()

			runs, err := rec.Recent(limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), notifier.FormatHistory(runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", scheduler.HistoryLimit, "number of runs to show")
	return cmd
}
