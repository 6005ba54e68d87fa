package benchservice

import (
	"context"
	"strings"

	"github.com/contenox/modelrouter/libtracker"
	"github.com/contenox/modelrouter/runtimetypes"
)

type activityTrackerDecorator struct {
	service Service
	tracker libtracker.ActivityTracker
}

func (d *activityTrackerDecorator) Run(ctx context.Context, task, size, modelOverride, providerOverride string) (*runtimetypes.TestResult, error) {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"run",
		"benchmark",
		"task", task,
		"size", size,
		"model_override", modelOverride,
	)
	defer endFn()

	result, err := d.service.Run(ctx, task, size, modelOverride, providerOverride)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(result.ModelKey, map[string]any{
			"status": result.Status,
		})
	}

	return result, err
}

func (d *activityTrackerDecorator) Sweep(ctx context.Context, tasks []string, sizes []string) ([]*runtimetypes.TestResult, error) {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"sweep",
		"benchmark",
		"tasks", strings.Join(tasks, ","),
		"sizes", strings.Join(sizes, ","),
	)
	defer endFn()

	results, err := d.service.Sweep(ctx, tasks, sizes)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn("sweep", map[string]any{
			"results": len(results),
		})
	}

	return results, err
}

func (d *activityTrackerDecorator) GetResult(ctx context.Context, modelKey, task, size string) (*runtimetypes.TestResult, error) {
	reportErrFn, _, endFn := d.tracker.Start(
		ctx,
		"get",
		"benchmark_result",
		"model", modelKey,
		"task", task,
		"size", size,
	)
	defer endFn()

	result, err := d.service.GetResult(ctx, modelKey, task, size)
	if err != nil {
		reportErrFn(err)
	}

	return result, err
}

func (d *activityTrackerDecorator) ListResults(ctx context.Context, task, size string) ([]*runtimetypes.TestResult, error) {
	reportErrFn, _, endFn := d.tracker.Start(
		ctx,
		"list",
		"benchmark_results",
		"task", task,
		"size", size,
	)
	defer endFn()

	results, err := d.service.ListResults(ctx, task, size)
	if err != nil {
		reportErrFn(err)
	}

	return results, err
}

func (d *activityTrackerDecorator) ListCases(ctx context.Context) ([]*TestCase, error) {
	reportErrFn, _, endFn := d.tracker.Start(ctx, "list", "benchmark_cases")
	defer endFn()

	cases, err := d.service.ListCases(ctx)
	if err != nil {
		reportErrFn(err)
	}

	return cases, err
}

func WithActivityTracker(service Service, tracker libtracker.ActivityTracker) Service {
	return &activityTrackerDecorator{
		service: service,
		tracker: tracker,
	}
}
