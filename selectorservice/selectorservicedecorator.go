package selectorservice

import (
	"context"

	"github.com/contenox/modelrouter/libtracker"
)

type activityTrackerDecorator struct {
	service Service
	tracker libtracker.ActivityTracker
}

func (d *activityTrackerDecorator) BestModel(ctx context.Context, task, size, criterion string) (*Selection, error) {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"select",
		"best_model",
		"task", task,
		"size", size,
		"criterion", criterion,
	)
	defer endFn()

	selection, err := d.service.BestModel(ctx, task, size, criterion)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(selection.ModelKey, map[string]any{
			"from_benchmark": selection.FromBenchmark,
		})
	}

	return selection, err
}

func WithActivityTracker(service Service, tracker libtracker.ActivityTracker) Service {
	return &activityTrackerDecorator{
		service: service,
		tracker: tracker,
	}
}
