// Package pipeline runs forecast jobs: query the credit history, fit one
// model per series, allocate targets, and publish the merged table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/maistodos/credit-forecast/pkg/credit"
	"github.com/maistodos/credit-forecast/pkg/forecast"
	"github.com/maistodos/credit-forecast/pkg/report"
	"github.com/maistodos/credit-forecast/pkg/seasonality"
	"github.com/maistodos/credit-forecast/pkg/warehouse"
)

// HistorySource returns the historical table of a query.
type HistorySource interface {
	Fetch(ctx context.Context, q warehouse.Query) ([]credit.HistoricalRecord, error)
}

type Options struct {
	// DryRun skips the upload.
	DryRun bool
	// OutputDir, when set, also receives a <job>.csv copy of each report.
	OutputDir string
}

// Result summarizes a successful run.
type Result struct {
	RunID     string
	Job       string
	Series    int
	Horizon   int
	Rows      int
	Body      []byte
	Published bool
}

type Runner struct {
	logger    log.FieldLogger
	source    HistorySource
	publisher report.Publisher
	clock     clock.PassiveClock
	opts      Options
}

func NewRunner(logger log.FieldLogger, source HistorySource, publisher report.Publisher, clk clock.PassiveClock, opts Options) *Runner {
	return &Runner{
		logger:    logger.WithField("component", "pipeline"),
		source:    source,
		publisher: publisher,
		clock:     clk,
		opts:      opts,
	}
}

// Run executes job once. Stages run in order and the report is only
// published when every earlier stage succeeded. Errors are *StageError.
func (r *Runner) Run(ctx context.Context, job Job) (*Result, error) {
	res := &Result{RunID: uuid.New().String(), Job: job.Name}
	logger := r.logger.WithFields(log.Fields{"job": job.Name, "run_id": res.RunID})
	runTotalCounter.WithLabelValues(job.Name).Inc()

	err := r.run(ctx, logger, job, res)
	if err != nil {
		stage := "unknown"
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			stage = string(stageErr.Stage)
		}
		runFailedCounter.WithLabelValues(job.Name, stage).Inc()
		logger.WithError(err).Error("forecast run failed")
		return nil, err
	}
	lastSuccessGauge.WithLabelValues(job.Name).Set(float64(r.clock.Now().Unix()))
	logger.WithFields(log.Fields{
		"series":    res.Series,
		"rows":      res.Rows,
		"horizon":   res.Horizon,
		"published": res.Published,
	}).Info("forecast run finished")
	return res, nil
}

func (r *Runner) run(ctx context.Context, logger log.FieldLogger, job Job, res *Result) error {
	stageErr := func(stage Stage, err error) error {
		return &StageError{Stage: stage, Job: job.Name, Err: err}
	}
	if err := job.Validate(); err != nil {
		return stageErr(StagePrepare, err)
	}

	var records []credit.HistoricalRecord
	err := r.timeStage(job, StageQuery, func() error {
		var err error
		records, err = r.source.Fetch(ctx, job.Query)
		return err
	})
	if err != nil {
		return stageErr(StageQuery, err)
	}

	var series []credit.Series
	err = r.timeStage(job, StagePrepare, func() error {
		if len(records) == 0 {
			return fmt.Errorf("query returned no history")
		}
		records = credit.Prepare(records)
		series = credit.SplitSeries(records)
		return nil
	})
	if err != nil {
		return stageErr(StagePrepare, err)
	}
	logger.WithFields(log.Fields{"records": len(records), "series": len(series)}).Debug("prepared credit history")

	res.Horizon = forecast.Horizon(r.clock.Now().UTC(), job.End)
	var forecasts []seasonality.Series
	err = r.timeStage(job, StageFit, func() error {
		for _, s := range series {
			if err := ctx.Err(); err != nil {
				return &StageError{Stage: StageFit, Job: job.Name, Series: s.Name(), Err: err}
			}
			dates := make([]time.Time, len(s.Records))
			values := make([]float64, len(s.Records))
			for i, rec := range s.Records {
				dates[i] = rec.Date
				values[i] = rec.Value
			}
			points, err := forecast.Forecast(dates, values, res.Horizon, job.Forecast)
			if err != nil {
				return &StageError{Stage: StageFit, Job: job.Name, Series: s.Name(), Err: err}
			}
			seriesFittedCounter.WithLabelValues(job.Name).Inc()
			logger.WithFields(log.Fields{"series": s.Name(), "observations": len(dates), "points": len(points)}).Debug("fitted series")
			forecasts = append(forecasts, seasonality.Series{Lender: s.Lender, Points: points})
		}
		return nil
	})
	if err != nil {
		return err
	}
	res.Series = len(forecasts)

	allocator, err := seasonality.NewAllocator(job.Targets, job.TargetSplit)
	if err != nil {
		return stageErr(StagePrepare, err)
	}
	rows := report.Merge(records, allocator.Allocate(forecasts))
	res.Rows = len(rows)

	err = r.timeStage(job, StagePublish, func() error {
		body, err := report.EncodeCSV(job.Layout, rows)
		if err != nil {
			return err
		}
		res.Body = body
		if r.opts.OutputDir != "" {
			path := filepath.Join(r.opts.OutputDir, job.Name+".csv")
			if err := os.WriteFile(path, body, 0644); err != nil {
				return fmt.Errorf("unable to write %s: %w", path, err)
			}
			logger.WithField("path", path).Info("wrote report file")
		}
		if r.opts.DryRun {
			logger.WithField("destination", job.Destination.String()).Info("dry run, skipping upload")
			return nil
		}
		if err := r.publisher.Publish(ctx, job.Destination.Bucket, job.Destination.Key, body); err != nil {
			return err
		}
		res.Published = true
		rowsPublishedGauge.WithLabelValues(job.Name).Set(float64(len(rows)))
		return nil
	})
	if err != nil {
		return stageErr(StagePublish, err)
	}
	return nil
}

func (r *Runner) timeStage(job Job, stage Stage, fn func() error) error {
	start := r.clock.Now()
	defer func() {
		stageDurationHistogram.WithLabelValues(job.Name, string(stage)).Observe(r.clock.Since(start).Seconds())
	}()
	return fn()
}

// RunAll runs jobs one after another and stops at the first failure.
func (r *Runner) RunAll(ctx context.Context, jobs []Job) ([]*Result, error) {
	var results []*Result
	for _, job := range jobs {
		res, err := r.Run(ctx, job)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
