package modelservice

import (
	"context"
	"fmt"
	"time"

	"github.com/contenox/modelrouter/libtracker"
	"github.com/contenox/modelrouter/runtimetypes"
)

type activityTrackerDecorator struct {
	service Service
	tracker libtracker.ActivityTracker
}

func (d *activityTrackerDecorator) Append(ctx context.Context, record *runtimetypes.ModelRecord) error {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"create",
		"model_record",
		"key", record.Key,
	)
	defer endFn()

	err := d.service.Append(ctx, record)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(record.Key, map[string]interface{}{
			"provider": record.Provider,
			"model":    record.ModelName,
			"tasks":    record.Tasks,
		})
	}

	return err
}

func (d *activityTrackerDecorator) Get(ctx context.Context, key string) (*runtimetypes.ModelRecord, error) {
	reportErrFn, _, endFn := d.tracker.Start(
		ctx,
		"get",
		"model_record",
		"key", key,
	)
	defer endFn()

	record, err := d.service.Get(ctx, key)
	if err != nil {
		reportErrFn(err)
	}

	return record, err
}

func (d *activityTrackerDecorator) List(ctx context.Context, createdAtCursor *time.Time, limit int) ([]*runtimetypes.ModelRecord, error) {
	reportErrFn, _, endFn := d.tracker.Start(
		ctx,
		"list",
		"model_records",
		"cursor", fmt.Sprintf("%v", createdAtCursor),
		"limit", fmt.Sprintf("%d", limit),
	)
	defer endFn()

	records, err := d.service.List(ctx, createdAtCursor, limit)
	if err != nil {
		reportErrFn(err)
	}

	return records, err
}

func (d *activityTrackerDecorator) ListForTask(ctx context.Context, task string) ([]*runtimetypes.ModelRecord, error) {
	reportErrFn, _, endFn := d.tracker.Start(
		ctx,
		"list",
		"model_records",
		"task", task,
	)
	defer endFn()

	records, err := d.service.ListForTask(ctx, task)
	if err != nil {
		reportErrFn(err)
	}

	return records, err
}

func (d *activityTrackerDecorator) Update(ctx context.Context, record *runtimetypes.ModelRecord) error {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"update",
		"model_record",
		"key", record.Key,
	)
	defer endFn()

	err := d.service.Update(ctx, record)
	if err != nil {
		reportErrFn(err)
	} else {
		changes := map[string]any{
			"tasks":   record.Tasks,
			"enabled": record.Enabled,
		}
		reportChangeFn(record.Key, changes)
	}

	return err
}

func (d *activityTrackerDecorator) Delete(ctx context.Context, key string) error {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"delete",
		"model_record",
		"key", key,
	)
	defer endFn()

	err := d.service.Delete(ctx, key)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(key, "deleted")
	}

	return err
}

func WithActivityTracker(service Service, tracker libtracker.ActivityTracker) Service {
	return &activityTrackerDecorator{
		service: service,
		tracker: tracker,
	}
}
