package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/orderdesk-backend/internal/orders"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

const defaultStaleReservationAge = 72 * time.Hour

type staleReservationSource interface {
	StaleReservations(ctx context.Context, cutoff time.Time) (orders.StaleReservationSummary, error)
}

type staleReservationGauge interface {
	Set(orders, units int64)
}

type StaleReservationJobParams struct {
	Logger     *logger.Logger
	Repository staleReservationSource
	Gauge      staleReservationGauge
	After      time.Duration
}

// NewStaleReservationJob reports pending, unassigned orders that have held
// stock longer than After. It only measures; holds are never released here.
func NewStaleReservationJob(params StaleReservationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	after := params.After
	if after <= 0 {
		after = defaultStaleReservationAge
	}
	return &staleReservationJob{
		logg:  params.Logger,
		repo:  params.Repository,
		gauge: params.Gauge,
		after: after,
		now:   time.Now,
	}, nil
}

type staleReservationJob struct {
	logg  *logger.Logger
	repo  staleReservationSource
	gauge staleReservationGauge
	after time.Duration
	now   func() time.Time
}

func (j *staleReservationJob) Name() string { return "stale-reservations" }

func (j *staleReservationJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	summary, err := j.repo.StaleReservations(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("scan stale reservations: %w", err)
	}
	if j.gauge != nil {
		j.gauge.Set(summary.Orders, summary.Units)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"stale_orders": summary.Orders,
		"held_units":   summary.Units,
	})
	if summary.Orders > 0 {
		j.logg.Warn(logCtx, "pending orders are holding stock past the stale threshold")
		return nil
	}
	j.logg.Info(logCtx, "no stale reservations")
	return nil
}
