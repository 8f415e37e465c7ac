package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"tally/internal/core"
)

// Stats computes the summary, category breakdown and monthly breakdown
// for one account over the same filter. The three aggregations run
// concurrently and never take any account-level lock.
//
// Each aggregation is an independent read; a mutation landing between
// them can make the three views reflect slightly different snapshots.
func (e *Engine) Stats(ctx context.Context, accountID string, f Filter) (*StatsResult, error) {
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	var (
		summary Summary
		cats    []CategoryBucket
		months  []MonthBucket
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := e.store.Summarize(gctx, accountID, f)
		if err != nil {
			return fmt.Errorf("summarize: %w", err)
		}
		summary = s
		return nil
	})
	g.Go(func() error {
		c, err := e.store.SumByCategory(gctx, accountID, f)
		if err != nil {
			return fmt.Errorf("sum by category: %w", err)
		}
		cats = c
		return nil
	})
	g.Go(func() error {
		m, err := e.store.SumByMonth(gctx, accountID, f)
		if err != nil {
			return fmt.Errorf("sum by month: %w", err)
		}
		months = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary.NetAmount = summary.TotalCredit.Sub(summary.TotalDebit)
	summary.AverageAmount = averageAmount(summary)

	if cats == nil {
		cats = []CategoryBucket{}
	}
	if months == nil {
		months = []MonthBucket{}
	}
	return &StatsResult{
		Summary:           summary,
		CategoryBreakdown: cats,
		MonthlyBreakdown:  months,
	}, nil
}

// averageAmount is the mean transaction magnitude, zero when the
// filtered set is empty. Division is done in decimal and rounded
// half-up back to cents.
func averageAmount(s Summary) core.Money {
	if s.TotalTransactions == 0 {
		return core.Money{}
	}
	total := s.TotalCredit.Add(s.TotalDebit)
	avg := decimal.NewFromInt(total.Cents).
		Div(decimal.NewFromInt(s.TotalTransactions)).
		Round(0)
	return core.Money{Cents: avg.IntPart()}
}
