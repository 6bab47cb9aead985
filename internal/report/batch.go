package report

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

// Adviser produces a decision for one request.
type Adviser interface {
	Advise(ctx context.Context, req model.DecisionRequest) (*model.IrrigationDecision, error)
}

// Result pairs an input row with its decision or error.
type Result struct {
	Row      Row
	Decision *model.IrrigationDecision
	Err      error
}

// Run evaluates rows with at most concurrency decisions in flight. Results
// keep input order. A failed row never aborts the batch.
func Run(ctx context.Context, adviser Adviser, rows []Row, concurrency int) []Result {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]Result, len(rows))

	zap.L().Info("report: processing batch",
		zap.Int("rows", len(rows)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, row := range rows {
		results[i].Row = row
		if row.Err != nil {
			failed.Add(1)
			results[i].Err = row.Err
			continue
		}
		g.Go(func() error {
			d, err := adviser.Advise(gctx, row.Request)
			if err != nil {
				failed.Add(1)
				zap.L().Warn("report: decision failed",
					zap.Int("line", row.Line),
					zap.String("farmer_id", row.Request.FarmerID),
					zap.Error(err),
				)
				results[i].Err = err
				return nil // don't abort batch on individual failure
			}
			succeeded.Add(1)
			results[i].Decision = d
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("report: batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results
}
