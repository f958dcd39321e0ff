package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"BtcInsight/internal/collector"
	"BtcInsight/internal/inference"
	"BtcInsight/internal/insight"
	"BtcInsight/internal/metrics"
	"BtcInsight/internal/model"
)

type stubGenerator struct {
	text   string
	err    error
	prompt string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.text, g.err
}

func newPipeline(fetcher collector.Fetcher, gen *stubGenerator) *Pipeline {
	col := collector.NewCollector(fetcher, "bitcoin", 30, collector.KindPrices)
	var g inference.Generator
	if gen != nil {
		g = gen
	}
	return New(col, g, insight.PromptOptions{AssetName: "Bitcoin"}, metrics.New())
}

func mock() *collector.MockFetcher {
	return &collector.MockFetcher{Price: 42000, End: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
}

func TestRun_Success(t *testing.T) {
	gen := &stubGenerator{text: "Momentum is neutral."}
	p := newPipeline(mock(), gen)

	out := p.Run(context.Background(), Request{
		Selection: model.NewSelection(model.KPIRSI, model.KPIEMA7),
		Question:  "What are the latest Bitcoin trends?",
	})
	if !out.OK() {
		t.Fatalf("expected success, got diagnostics %+v", out.Diagnostics)
	}
	if out.Insight != "Momentum is neutral." {
		t.Errorf("unexpected insight %q", out.Insight)
	}
	if gen.prompt != out.Prompt {
		t.Error("generator did not receive the formatted prompt")
	}
	if !strings.Contains(out.Prompt, "Question: What are the latest Bitcoin trends?") {
		t.Errorf("question missing from prompt:\n%s", out.Prompt)
	}
	if len(out.Snapshot.Values) != 2 {
		t.Errorf("expected 2 indicator values, got %d", len(out.Snapshot.Values))
	}
}

func TestRun_EmptySelection(t *testing.T) {
	f := mock()
	p := newPipeline(f, &stubGenerator{text: "x"})
	out := p.Run(context.Background(), Request{Selection: model.NewSelection(), Unknown: []string{"MACD"}})

	if len(out.Diagnostics) != 1 || out.Diagnostics[0].Message != MsgNoIndicators {
		t.Fatalf("unexpected diagnostics %+v", out.Diagnostics)
	}
	if !errors.Is(out.Err, model.ErrNoValidIndicators) {
		t.Errorf("expected ErrNoValidIndicators, got %v", out.Err)
	}
	if out.Prompt != "" || out.Snapshot != nil {
		t.Error("no prompt or snapshot expected for an empty selection")
	}
	if f.Calls != 0 {
		t.Error("empty selection should not fetch")
	}
}

func TestRun_FetchFailure(t *testing.T) {
	f := mock()
	f.Err = &model.FetchError{Source: "coingecko", Op: "market_chart", Status: 500}
	gen := &stubGenerator{text: "x"}
	out := newPipeline(f, gen).Run(context.Background(), Request{Selection: model.NewSelection(model.KPIRSI)})

	if len(out.Diagnostics) != 1 || out.Diagnostics[0].Kind != KindFetch || out.Diagnostics[0].Message != MsgNoData {
		t.Fatalf("unexpected diagnostics %+v", out.Diagnostics)
	}
	if gen.prompt != "" {
		t.Error("inference must not run without data")
	}
}

func TestRun_InferenceFailureKeepsSnapshot(t *testing.T) {
	gen := &stubGenerator{err: &model.FetchError{Source: "huggingface", Status: 503}}
	out := newPipeline(mock(), gen).Run(context.Background(), Request{Selection: model.NewSelection(model.KPIEMA30)})

	if out.Snapshot == nil {
		t.Fatal("snapshot must survive an inference failure")
	}
	if len(out.Diagnostics) != 1 || out.Diagnostics[0].Message != MsgInference {
		t.Fatalf("unexpected diagnostics %+v", out.Diagnostics)
	}
}

func TestRun_MalformedResponse(t *testing.T) {
	gen := &stubGenerator{err: &model.MalformedAIResponseError{Reason: "empty list"}}
	out := newPipeline(mock(), gen).Run(context.Background(), Request{Selection: model.NewSelection(model.KPIRSI)})

	if len(out.Diagnostics) != 1 || out.Diagnostics[0].Kind != KindResponse || out.Diagnostics[0].Message != MsgResponse {
		t.Fatalf("unexpected diagnostics %+v", out.Diagnostics)
	}
}

func TestRun_NonFinitePriceDoesNotPanic(t *testing.T) {
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	f := &collector.MockFetcher{Bars: []model.OHLCBar{
		{Time: end.AddDate(0, 0, -1), Close: 100},
		{Time: end, Close: math.Inf(1)},
	}}
	gen := &stubGenerator{text: "x"}
	out := newPipeline(f, gen).Run(context.Background(), Request{Selection: model.NewSelection(model.KPIRSI, model.KPIEMA7)})
	if out.Snapshot == nil {
		t.Fatalf("expected a snapshot, got diagnostics %+v", out.Diagnostics)
	}
	if !strings.Contains(out.Prompt, "Latest price: N/A") {
		t.Errorf("non-finite price should render N/A:\n%s", out.Prompt)
	}
}

func TestRun_SkipInference(t *testing.T) {
	gen := &stubGenerator{text: "x"}
	out := newPipeline(mock(), gen).Run(context.Background(), Request{
		Selection:     model.NewSelection(model.KPIRSI),
		SkipInference: true,
	})
	if out.Prompt == "" || out.Insight != "" || len(out.Diagnostics) != 0 {
		t.Errorf("unexpected outcome %+v", out)
	}
	if gen.prompt != "" {
		t.Error("generator must not be called")
	}
}

func TestRun_NoGenerator(t *testing.T) {
	out := newPipeline(mock(), nil).Run(context.Background(), Request{Selection: model.NewSelection(model.KPIRSI)})
	if out.Snapshot == nil || len(out.Diagnostics) != 0 {
		t.Errorf("unexpected outcome %+v", out)
	}
}
