package benchservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/contenox/modelrouter/internal/modelrepo"
	libdb "github.com/contenox/modelrouter/libdbexec"
	"github.com/contenox/modelrouter/runtimetypes"
	"golang.org/x/sync/errgroup"
)

// sweepMaxParallel bounds the ad-hoc worker pool for batch runs.
const sweepMaxParallel = 5

var ErrUnknownTask = errors.New("unknown benchmark task")

type Service interface {
	Run(ctx context.Context, task, size, modelOverride, providerOverride string) (*runtimetypes.TestResult, error)
	Sweep(ctx context.Context, tasks []string, sizes []string) ([]*runtimetypes.TestResult, error)
	GetResult(ctx context.Context, modelKey, task, size string) (*runtimetypes.TestResult, error)
	ListResults(ctx context.Context, task, size string) ([]*runtimetypes.TestResult, error)
	ListCases(ctx context.Context) ([]*TestCase, error)
}

type service struct {
	executor   *Executor
	loader     *Loader
	dbInstance libdb.DBManager
	logger     *slog.Logger
}

func New(executor *Executor, loader *Loader, db libdb.DBManager, logger *slog.Logger) (Service, error) {
	if executor == nil {
		return nil, errors.New("executor cannot be nil")
	}
	if loader == nil {
		return nil, errors.New("loader cannot be nil")
	}
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		executor:   executor,
		loader:     loader,
		dbInstance: db,
		logger:     logger,
	}, nil
}

func (s *service) Run(ctx context.Context, task, size, modelOverride, providerOverride string) (*runtimetypes.TestResult, error) {
	if _, err := modelrepo.ParseTask(task); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, task)
	}
	testCase, err := s.loader.Load(task, size)
	if err != nil {
		return nil, err
	}
	return s.executor.Execute(ctx, testCase, modelOverride, providerOverride)
}

// Sweep benchmarks every enabled model record against every matching
// fixture, at most sweepMaxParallel cases in flight. One failing case
// never aborts the rest of the batch.
func (s *service) Sweep(ctx context.Context, tasks []string, sizes []string) ([]*runtimetypes.TestResult, error) {
	store := runtimetypes.New(s.dbInstance.WithoutTransaction())

	type job struct {
		testCase *TestCase
		provider string
		model    string
	}
	var jobs []job
	for _, testCase := range s.loader.List() {
		if len(tasks) > 0 && !slices.Contains(tasks, testCase.Task) {
			continue
		}
		if len(sizes) > 0 && !slices.Contains(sizes, testCase.Size) {
			continue
		}
		records, err := store.ListModelRecordsForTask(ctx, testCase.Task)
		if err != nil {
			return nil, fmt.Errorf("failed to list models for task %s: %w", testCase.Task, err)
		}
		for _, record := range records {
			if !record.Enabled {
				continue
			}
			jobs = append(jobs, job{testCase: testCase, provider: record.Provider, model: record.ModelName})
		}
	}

	results := make([]*runtimetypes.TestResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepMaxParallel)
	for i, j := range jobs {
		g.Go(func() error {
			result, err := s.executor.Execute(gctx, j.testCase, j.model, j.provider)
			if err != nil {
				s.logger.Warn("benchmark case skipped",
					"task", j.testCase.Task,
					"size", j.testCase.Size,
					"model", runtimetypes.ModelKey(j.provider, j.model),
					"error", err)
				return nil
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	completed := results[:0]
	for _, r := range results {
		if r != nil {
			completed = append(completed, r)
		}
	}
	s.recordSweepSummary(ctx, store, completed)
	return completed, nil
}

// recordSweepSummary leaves a small inspection trail in the database KV.
// Failures here are bookkeeping, not sweep failures.
func (s *service) recordSweepSummary(ctx context.Context, store runtimetypes.Store, results []*runtimetypes.TestResult) {
	summary := struct {
		FinishedAt time.Time `json:"finishedAt"`
		Total      int       `json:"total"`
		Succeeded  int       `json:"succeeded"`
	}{
		FinishedAt: time.Now().UTC(),
		Total:      len(results),
	}
	for _, r := range results {
		if r.Status == runtimetypes.ResultStatusSuccess {
			summary.Succeeded++
		}
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := store.SetKV(ctx, "bench:last-sweep", raw); err != nil {
		s.logger.Warn("failed to record sweep summary", "error", err)
	}
}

func (s *service) GetResult(ctx context.Context, modelKey, task, size string) (*runtimetypes.TestResult, error) {
	store := runtimetypes.New(s.dbInstance.WithoutTransaction())
	return store.GetTestResult(ctx, modelKey, task, size)
}

func (s *service) ListResults(ctx context.Context, task, size string) ([]*runtimetypes.TestResult, error) {
	store := runtimetypes.New(s.dbInstance.WithoutTransaction())
	return store.ListTestResults(ctx, task, size)
}

func (s *service) ListCases(ctx context.Context) ([]*TestCase, error) {
	return s.loader.List(), nil
}

func (s *service) GetServiceName() string {
	return "benchservice"
}
