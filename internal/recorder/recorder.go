package recorder

import (
	"time"

	"BtcInsight/internal/model"
	"BtcInsight/internal/pipeline"
)

// Run is one persisted refresh.
type Run struct {
	ID          int64
	Timestamp   time.Time
	Asset       string
	Price       float64 // 0 when no snapshot was built
	Indicators  map[model.KPI]float64
	Insight     string
	Diagnostics []string
	Duration    time.Duration
}

// HasSnapshot reports whether the run produced numbers.
func (r *Run) HasSnapshot() bool { return r.Price != 0 || len(r.Indicators) > 0 }

// RunFromOutcome flattens a pipeline outcome. Invalid indicator values
// are left out.
func RunFromOutcome(asset string, out *pipeline.Outcome) *Run {
	run := &Run{
		Timestamp:  out.StartedAt,
		Asset:      asset,
		Insight:    out.Insight,
		Duration:   out.Duration,
		Indicators: make(map[model.KPI]float64),
	}
	if out.Snapshot != nil {
		run.Price = out.Snapshot.Price
		if out.Snapshot.Asset != "" {
			run.Asset = out.Snapshot.Asset
		}
		for _, v := range out.Snapshot.Values {
			if v.Valid {
				run.Indicators[v.KPI] = v.Value
			}
		}
	}
	for _, d := range out.Diagnostics {
		run.Diagnostics = append(run.Diagnostics, d.Message)
	}
	return run
}

// Recorder persists refresh history.
type Recorder interface {
	RecordRun(run *Run) error
	Recent(n int) ([]Run, error)
	Close() error
}
