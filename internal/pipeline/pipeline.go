// Package pipeline runs one refresh cycle: fetch, snapshot, prompt,
// inference. Every failure becomes a diagnostic on the Outcome; Run never
// returns an error and never panics on bad collaborator data.
package pipeline

import (
	"context"
	"errors"
	"time"

	"BtcInsight/internal/inference"
	"BtcInsight/internal/insight"
	"BtcInsight/internal/metrics"
	"BtcInsight/internal/model"

	"github.com/rs/zerolog/log"
)

// Diagnostic kinds.
const (
	KindFetch     = "fetch"
	KindSelection = "selection"
	KindData      = "data"
	KindInference = "inference"
	KindResponse  = "response"
)

// User-visible diagnostic messages.
const (
	MsgNoData       = "No data available."
	MsgNoIndicators = "No valid indicators selected."
	MsgInference    = "Error generating insights."
	MsgResponse     = "Error processing AI response."
)

// Source supplies the table for one refresh.
type Source interface {
	Collect(ctx context.Context, sel model.Selection) (*model.Table, error)
}

// Request describes one refresh.
type Request struct {
	Selection     model.Selection
	Unknown       []string // indicator names that did not parse
	Question      string
	SkipInference bool
}

// Diagnostic is a short, renderable failure description.
type Diagnostic struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Outcome holds everything the presentation layer needs. Snapshot and
// Insight are independent: either may be present without the other.
type Outcome struct {
	Snapshot    *insight.Snapshot `json:"snapshot,omitempty"`
	Prompt      string            `json:"prompt,omitempty"`
	Insight     string            `json:"insight,omitempty"`
	Diagnostics []Diagnostic      `json:"diagnostics,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	Duration    time.Duration     `json:"duration_ns"`
	Err         error             `json:"-"`
}

// OK reports whether the run produced both a snapshot and an insight.
func (o *Outcome) OK() bool {
	return o.Snapshot != nil && o.Insight != "" && len(o.Diagnostics) == 0
}

// Kinds returns the diagnostic kinds in order.
func (o *Outcome) Kinds() []string {
	out := make([]string, len(o.Diagnostics))
	for i, d := range o.Diagnostics {
		out[i] = d.Kind
	}
	return out
}

func (o *Outcome) fail(kind, msg string, err error) {
	d := Diagnostic{Kind: kind, Message: msg}
	if err != nil {
		d.Detail = err.Error()
		if o.Err == nil {
			o.Err = err
		}
	}
	o.Diagnostics = append(o.Diagnostics, d)
	log.Error().Err(err).Str("kind", kind).Msg(msg)
}

// Pipeline wires the collaborators of a refresh.
type Pipeline struct {
	Source    Source
	Generator inference.Generator // optional
	Prompt    insight.PromptOptions
	Metrics   *metrics.Metrics
}

// New creates a Pipeline.
func New(src Source, gen inference.Generator, prompt insight.PromptOptions, m *metrics.Metrics) *Pipeline {
	return &Pipeline{Source: src, Generator: gen, Prompt: prompt, Metrics: m}
}

// Run executes one refresh.
func (p *Pipeline) Run(ctx context.Context, req Request) *Outcome {
	out := &Outcome{StartedAt: time.Now()}
	defer func() {
		out.Duration = time.Since(out.StartedAt)
		price := 0.0
		if out.Snapshot != nil {
			price = out.Snapshot.Price
		}
		p.Metrics.ObservePipeline(out.Duration, price, out.Kinds())
	}()

	if req.Selection.Empty() {
		out.fail(KindSelection, MsgNoIndicators, &model.InvalidSelectionError{Unknown: req.Unknown})
		return out
	}

	tbl, err := p.Source.Collect(ctx, req.Selection)
	if err != nil {
		out.fail(KindFetch, MsgNoData, err)
		return out
	}

	snap, err := insight.BuildSnapshot(tbl, req.Selection)
	if err != nil {
		var ise *model.InvalidSelectionError
		if errors.As(err, &ise) {
			out.fail(KindSelection, MsgNoIndicators, err)
		} else {
			out.fail(KindData, MsgNoData, err)
		}
		return out
	}
	out.Snapshot = snap

	opts := p.Prompt
	if req.Question != "" {
		opts.Question = req.Question
	}
	out.Prompt = insight.FormatPrompt(snap, opts)

	if req.SkipInference || p.Generator == nil {
		return out
	}

	text, err := p.Generator.Generate(ctx, out.Prompt)
	if err != nil {
		var mre *model.MalformedAIResponseError
		if errors.As(err, &mre) {
			out.fail(KindResponse, MsgResponse, err)
		} else {
			out.fail(KindInference, MsgInference, err)
		}
		return out
	}
	out.Insight = text
	return out
}
