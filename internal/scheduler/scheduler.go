package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"BtcInsight/internal/model"
	"BtcInsight/internal/notifier"
	"BtcInsight/internal/pipeline"
	"BtcInsight/internal/recorder"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// HistoryLimit is how many runs /history lists.
const HistoryLimit = 5

// Scheduler runs periodic refreshes and answers chat commands.
type Scheduler struct {
	Cron     *cron.Cron
	Pipeline *pipeline.Pipeline
	Recorder recorder.Recorder
	Notifier notifier.Notifier
	Request  pipeline.Request // default request for scheduled runs
	Asset    string
	Ctx      context.Context
}

// NewScheduler creates a new Scheduler. Overlapping runs are skipped.
func NewScheduler(ctx context.Context, p *pipeline.Pipeline, rec recorder.Recorder, n notifier.Notifier, req pipeline.Request) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	logger := cron.PrintfLogger(&log.Logger)
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		Pipeline: p,
		Recorder: rec,
		Notifier: n,
		Request:  req,
		Ctx:      ctx,
	}
}

// Register adds the refresh task on a six-field cron spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, func() { s.RunNow(s.Ctx) }); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running refresh.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunNow executes a refresh with the default request.
func (s *Scheduler) RunNow(ctx context.Context) *pipeline.Outcome {
	return s.run(ctx, s.Request)
}

func (s *Scheduler) run(ctx context.Context, req pipeline.Request) *pipeline.Outcome {
	log.Info().Strs("indicators", req.Selection.Strings()).Msg("running refresh")
	out := s.Pipeline.Run(ctx, req)

	if err := s.Recorder.RecordRun(recorder.RunFromOutcome(s.Asset, out)); err != nil {
		log.Error().Err(err).Msg("record run")
	}
	if s.Notifier != nil {
		if err := s.Notifier.Notify(ctx, out); err != nil {
			log.Error().Err(err).Msg("send notification")
		}
	}
	return out
}

const helpText = "Available commands:\n" +
	"• /insight [question] - refresh now\n" +
	"• /indicators RSI,EMA_30 [question] - refresh with a custom selection\n" +
	"• /history - recent runs"

// HandleCommand processes a user command and returns a reply. Refresh
// commands reply through the notifier, so their direct reply is empty.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	name, rest, _ := strings.Cut(strings.TrimSpace(command), " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "/insight":
		req := s.Request
		if rest != "" {
			req.Question = rest
		}
		s.run(ctx, req)
		return ""
	case "/indicators":
		list, question, _ := strings.Cut(rest, " ")
		sel, unknown := model.ParseSelection(strings.Split(list, ","))
		req := pipeline.Request{Selection: sel, Unknown: unknown, Question: strings.TrimSpace(question)}
		if req.Question == "" {
			req.Question = s.Request.Question
		}
		s.run(ctx, req)
		return ""
	case "/history":
		runs, err := s.Recorder.Recent(HistoryLimit)
		if err != nil {
			log.Error().Err(err).Msg("load history")
			return "History unavailable."
		}
		return notifier.FormatHistoryHTML(runs)
	default:
		return helpText
	}
}
