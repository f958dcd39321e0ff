package notifier

import (
	"context"
	"fmt"
	"io"
	"sync"

	"BtcInsight/internal/pipeline"
)

// Notifier delivers a refresh outcome.
type Notifier interface {
	Notify(ctx context.Context, out *pipeline.Outcome) error
}

// ConsoleNotifier writes plain-text reports to a writer.
type ConsoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleNotifier(w io.Writer) *ConsoleNotifier { return &ConsoleNotifier{w: w} }

func (c *ConsoleNotifier) Notify(_ context.Context, out *pipeline.Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintln(c.w, FormatReport(out)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Multi fans an outcome out to several notifiers and returns the first error.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, out *pipeline.Outcome) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, out); err != nil && first == nil {
			first = err
		}
	}
	return first
}
