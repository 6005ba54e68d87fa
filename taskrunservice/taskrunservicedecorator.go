package taskrunservice

import (
	"context"

	"github.com/contenox/modelrouter/libtracker"
)

type activityTrackerDecorator struct {
	service Service
	tracker libtracker.ActivityTracker
}

func (d *activityTrackerDecorator) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"execute",
		"chat",
		"provider", req.Provider,
		"model", req.Model,
	)
	defer endFn()

	resp, err := d.service.Chat(ctx, req)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(resp.Usage.Model, map[string]any{"tokens": resp.Usage.Tokens})
	}

	return resp, err
}

func (d *activityTrackerDecorator) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"execute",
		"embedding",
		"provider", req.Provider,
		"model", req.Model,
	)
	defer endFn()

	resp, err := d.service.Embed(ctx, req)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(resp.Usage.Model, map[string]any{"vectors": len(resp.Vectors)})
	}

	return resp, err
}

func (d *activityTrackerDecorator) Transcribe(ctx context.Context, req TranscribeRequest) (*TranscribeResponse, error) {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"execute",
		"transcription",
		"provider", req.Provider,
		"model", req.Model,
	)
	defer endFn()

	resp, err := d.service.Transcribe(ctx, req)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(resp.Usage.Model, map[string]any{"tokens": resp.Usage.Tokens})
	}

	return resp, err
}

func (d *activityTrackerDecorator) Vision(ctx context.Context, req VisionRequest) (*VisionResponse, error) {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"execute",
		"vision",
		"provider", req.Provider,
		"model", req.Model,
	)
	defer endFn()

	resp, err := d.service.Vision(ctx, req)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(resp.Usage.Model, map[string]any{"tokens": resp.Usage.Tokens})
	}

	return resp, err
}

func (d *activityTrackerDecorator) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"execute",
		"image_generation",
		"provider", req.Provider,
		"model", req.Model,
	)
	defer endFn()

	resp, err := d.service.GenerateImage(ctx, req)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(resp.Usage.Model, map[string]any{"images": len(resp.Images)})
	}

	return resp, err
}

func (d *activityTrackerDecorator) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"execute",
		"summarization",
		"provider", req.Provider,
		"model", req.Model,
	)
	defer endFn()

	resp, err := d.service.Summarize(ctx, req)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn("summary", map[string]any{"chunks": resp.Chunks, "calls": len(resp.Usage)})
	}

	return resp, err
}

func WithActivityTracker(service Service, tracker libtracker.ActivityTracker) Service {
	return &activityTrackerDecorator{
		service: service,
		tracker: tracker,
	}
}
