// Package planner subdivides the creation-time axis into ranges small enough
// for the provider's bounded search window
package planner

import (
	"context"

	"repocrawl/internal/platform/logger"
	"repocrawl/internal/services/crawl/domain"
)

// CounterPort answers how many repositories a range matches
type CounterPort interface {
	CountRange(ctx context.Context, r domain.TimeRange) (int, error)
}

// Planner walks a range with a work stack, halving anything whose match count
// exceeds the provider's result window
type Planner struct {
	counter CounterPort
	limit   int
	log     logger.Logger
}

// New builds a Planner. limit is the provider's maximum results per search
func New(counter CounterPort, limit int, log logger.Logger) *Planner {
	if counter == nil {
		panic("planner: nil counter")
	}
	if limit <= 0 {
		panic("planner: limit must be positive")
	}
	return &Planner{counter: counter, limit: limit, log: log.With().Str("component", "planner").Logger()}
}

type item struct {
	r     domain.TimeRange
	count int
	known bool
}

// Plan subdivides initial into terminal ranges, oldest first, stopping once
// the requested shares cover target. Each plan carries the slice of the
// target its range should contribute, capped by what is still unassigned, so
// the producers' shares never sum past the target. Ranges too narrow to halve
// are clamped to the result window with a warning. When a split's children
// report fewer matches than the parent the provider's counts are inconsistent
// for that interval, and the parent is kept terminal rather than descending
// into counts that would silently drop repositories
func (p *Planner) Plan(ctx context.Context, initial domain.TimeRange, target int) ([]domain.RangePlan, error) {
	stack := []item{{r: initial}}
	var plans []domain.RangePlan
	remaining := target

	for len(stack) > 0 && remaining > 0 {
		if err := ctx.Err(); err != nil {
			return plans, err
		}
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		count := it.count
		if !it.known {
			var err error
			count, err = p.counter.CountRange(ctx, it.r)
			if err != nil {
				return plans, err
			}
		}
		if count == 0 {
			continue
		}
		if count <= p.limit {
			req := min(count, remaining)
			plans = append(plans, domain.RangePlan{Range: it.r, Requested: req, Count: count})
			remaining -= req
			continue
		}
		if !it.r.CanSplit() {
			p.log.Warn().
				Str("range", it.r.String()).
				Int("count", count).
				Int("limit", p.limit).
				Msg("range too narrow to split, clamping to result window")
			req := min(p.limit, remaining)
			plans = append(plans, domain.RangePlan{Range: it.r, Requested: req, Count: p.limit})
			remaining -= req
			continue
		}

		older, newer := it.r.Split()
		oc, err := p.counter.CountRange(ctx, older)
		if err != nil {
			return plans, err
		}
		nc, err := p.counter.CountRange(ctx, newer)
		if err != nil {
			return plans, err
		}

		effective := min(count, p.limit)
		if oc+nc < effective {
			p.log.Warn().
				Str("range", it.r.String()).
				Int("parent_count", count).
				Int("children_count", oc+nc).
				Msg("child counts below parent, keeping range terminal")
			req := min(effective, remaining)
			plans = append(plans, domain.RangePlan{Range: it.r, Requested: req, Count: effective})
			remaining -= req
			continue
		}

		// push newer first so the older half pops next; plans come out in
		// creation order
		if nc > 0 {
			stack = append(stack, item{r: newer, count: nc, known: true})
		}
		if oc > 0 {
			stack = append(stack, item{r: older, count: oc, known: true})
		}
	}
	return plans, nil
}
