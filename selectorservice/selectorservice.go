package selectorservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/internal/taskresolver"
	libdb "github.com/contenox/modelrouter/libdbexec"
	"github.com/contenox/modelrouter/runtimetypes"
)

const (
	CriterionDuration    = "duration"
	CriterionTokens      = "tokens"
	CriterionReliability = "reliability"
)

var ErrUnknownTask = errors.New("unknown task")

// Selection is a best-model answer together with where it came from.
type Selection struct {
	ModelKey string `json:"modelKey"`
	Task     string `json:"task"`
	Size     string `json:"size"`
	// Criterion is the criterion actually applied, after degrading
	// unknown inputs to duration.
	Criterion string `json:"criterion"`
	// FromBenchmark reports whether the answer is backed by a stored
	// benchmark result or fell back to the configured model.
	FromBenchmark bool `json:"fromBenchmark"`
}

type Service interface {
	BestModel(ctx context.Context, task, size, criterion string) (*Selection, error)
}

type service struct {
	dbInstance libdb.DBManager
	resolver   taskresolver.Resolver
	logger     *slog.Logger
}

func New(db libdb.DBManager, resolver taskresolver.Resolver, logger *slog.Logger) (Service, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if resolver == nil {
		return nil, errors.New("resolver cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		dbInstance: db,
		resolver:   resolver,
		logger:     logger,
	}, nil
}

// BestModel picks the best-ranked successful benchmark result for the
// task and size under the given criterion. Without benchmark data the
// currently resolved configuration answers instead.
func (s *service) BestModel(ctx context.Context, task, size, criterion string) (*Selection, error) {
	parsedTask, err := modelrepo.ParseTask(task)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, task)
	}

	switch criterion {
	case CriterionDuration, CriterionTokens, CriterionReliability:
	default:
		s.logger.Warn("unknown selection criterion, using duration",
			"criterion", criterion,
			"task", task)
		criterion = CriterionDuration
	}

	store := runtimetypes.New(s.dbInstance.WithoutTransaction())
	results, err := store.ListSuccessfulResults(ctx, task, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list benchmark results: %w", err)
	}
	if len(results) > 0 {
		rankResults(results, criterion)
		return &Selection{
			ModelKey:      results[0].ModelKey,
			Task:          task,
			Size:          size,
			Criterion:     criterion,
			FromBenchmark: true,
		}, nil
	}

	cfg, err := s.resolver.Resolve(ctx, parsedTask)
	if err != nil {
		return nil, fmt.Errorf("no benchmark data and no configured model for task %s: %w", task, err)
	}
	return &Selection{
		ModelKey:      runtimetypes.ModelKey(cfg.Provider, cfg.Model),
		Task:          task,
		Size:          size,
		Criterion:     criterion,
		FromBenchmark: false,
	}, nil
}

// rankResults orders successful results ascending by the criterion's
// field. Results without a token count rank last under the tokens
// criterion. Reliability degrades to duration ordering because only
// successful rows reach this point.
func rankResults(results []*runtimetypes.TestResult, criterion string) {
	switch criterion {
	case CriterionTokens:
		sort.SliceStable(results, func(i, j int) bool {
			a, b := results[i].Tokens, results[j].Tokens
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			if *a != *b {
				return *a < *b
			}
			return results[i].ModelKey < results[j].ModelKey
		})
	default:
		sort.SliceStable(results, func(i, j int) bool {
			if results[i].DurationMs != results[j].DurationMs {
				return results[i].DurationMs < results[j].DurationMs
			}
			return results[i].ModelKey < results[j].ModelKey
		})
	}
}

func (s *service) GetServiceName() string {
	return "selectorservice"
}
