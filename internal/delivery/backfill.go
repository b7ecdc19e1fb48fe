package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/yvy-orbital/yvy-field-service/internal/imagery"
	"github.com/yvy-orbital/yvy-field-service/internal/logger"
	"github.com/yvy-orbital/yvy-field-service/internal/storage"
	"github.com/yvy-orbital/yvy-field-service/internal/utils"
)

const (
	DefaultBackfillMonths = 6
	DefaultBackfillPause  = 2 * time.Second
)

type ReadingLister interface {
	ListReadings(ctx context.Context, farmID string, limit int) ([]storage.Reading, error)
}

// BackfillOptions controls a history backfill. Existing, when set, is used to
// skip windows that already hold a reading.
type BackfillOptions struct {
	Months       int
	Pause        time.Duration
	Existing     ReadingLister
	ShowProgress bool
}

// BackfillOutcome is the result of one monthly window. Result is nil when
// the window was skipped or failed.
type BackfillOutcome struct {
	Window  imagery.TimeWindow
	Result  *AnalysisResult
	Skipped bool
	Err     error
}

// Backfill analyses the farm over a 30-day window ending on the same day of
// each of the previous months, oldest first.
func (a *Analyzer) Backfill(ctx context.Context, farm FarmRequest, opts BackfillOptions) ([]BackfillOutcome, error) {
	months := opts.Months
	if months <= 0 {
		months = DefaultBackfillMonths
	}

	var existing []storage.Reading
	if opts.Existing != nil && farm.FarmID != "" {
		var err error
		existing, err = opts.Existing.ListReadings(ctx, farm.FarmID, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing readings: %w", err)
		}
	}

	var bar *progressbar.ProgressBar
	if opts.ShowProgress {
		bar = progressbar.Default(int64(months), "Backfilling readings")
	}

	log := logger.Log.WithField("farm", farmLabel(farm))
	ends := utils.MonthlyEnds(a.now(), months)
	outcomes := make([]BackfillOutcome, 0, len(ends))
	for i, end := range ends {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		if i > 0 && opts.Pause > 0 {
			select {
			case <-time.After(opts.Pause):
			case <-ctx.Done():
				return outcomes, ctx.Err()
			}
		}

		req := farm
		req.End = end.Format(imagery.DateLayout)
		req.Start = end.AddDate(0, 0, -imagery.DefaultWindowDays).Format(imagery.DateLayout)
		window, err := imagery.ParseWindow(req.Start, req.End, a.now())
		if err != nil {
			return outcomes, err
		}

		outcome := BackfillOutcome{Window: window}
		if hasReadingIn(existing, window) {
			outcome.Skipped = true
			log.WithField("window", window.String()).Info("reading already exists, skipping")
		} else {
			outcome.Result, outcome.Err = a.AnalyzeFarm(ctx, req)
			if outcome.Err != nil {
				log.WithFields(logrus.Fields{"window": window.String(), "error": outcome.Err}).Error("backfill window failed")
			}
		}
		outcomes = append(outcomes, outcome)

		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return outcomes, nil
}

func hasReadingIn(readings []storage.Reading, w imagery.TimeWindow) bool {
	for _, r := range readings {
		if w.Contains(r.Date) {
			return true
		}
	}
	return false
}
