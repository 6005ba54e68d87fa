package serverapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/contenox/modelrouter/apiframework"
	"github.com/contenox/modelrouter/benchservice"
	"github.com/contenox/modelrouter/internal/benchapi"
	"github.com/contenox/modelrouter/internal/modelapi"
	"github.com/contenox/modelrouter/internal/providerreg"
	"github.com/contenox/modelrouter/internal/qualityscore"
	"github.com/contenox/modelrouter/internal/taskapi"
	"github.com/contenox/modelrouter/internal/taskresolver"
	libbus "github.com/contenox/modelrouter/libbus"
	libdb "github.com/contenox/modelrouter/libdbexec"
	"github.com/contenox/modelrouter/libkvstore"
	"github.com/contenox/modelrouter/libtracker"
	"github.com/contenox/modelrouter/modelservice"
	"github.com/contenox/modelrouter/runtimetypes"
	"github.com/contenox/modelrouter/selectorservice"
	"github.com/contenox/modelrouter/taskrunservice"
)

// ReloadSubject is the bus subject that triggers a configuration reload
// on every node.
const ReloadSubject = "config_reload"

// New wires the services and mounts all routes on mux. The returned
// bench service backs the caller's sweep loop; the returned cleanup
// stops the reload subscription.
func New(
	ctx context.Context,
	mux *http.ServeMux,
	nodeInstanceID string,
	config *Config,
	dbInstance libdb.DBManager,
	pubsub libbus.Messenger,
	kvExec libkvstore.KVExec,
	staticCfg taskresolver.StaticConfig,
) (benchservice.Service, func() error, error) {
	cleanup := func() error { return nil }
	logger := slog.Default()
	stdOuttracker := libtracker.NewLogActivityTracker(logger)
	serveropsChainedTracker := libtracker.ChainedTracker{
		stdOuttracker,
	}

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		apiframework.Error(w, r, apiframework.ErrNotFound, apiframework.ListOperation)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		// OK
	})
	version := apiframework.GetVersion()
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		apiframework.Encode(w, r, http.StatusOK, apiframework.AboutServer{Version: version, NodeInstanceID: nodeInstanceID})
	})

	registry := providerreg.NewWithDefaults()
	store := runtimetypes.New(dbInstance.WithoutTransaction())
	resolver, err := taskresolver.New(kvExec, store, registry, staticCfg, nil, serveropsChainedTracker)
	if err != nil {
		return nil, cleanup, err
	}

	modelService := modelservice.New(dbInstance, config.ScoreModel)
	modelService = modelservice.WithActivityTracker(modelService, serveropsChainedTracker)
	modelapi.AddModelRoutes(mux, modelService)

	runService, err := taskrunservice.New(resolver)
	if err != nil {
		return nil, cleanup, err
	}
	runService = taskrunservice.WithActivityTracker(runService, serveropsChainedTracker)
	taskapi.AddTaskRoutes(mux, runService)

	broadcast := func(ctx context.Context) error {
		if pubsub == nil {
			return nil
		}
		return pubsub.Publish(ctx, ReloadSubject, []byte(nodeInstanceID))
	}
	taskapi.AddTaskConfigRoutes(mux, resolver, broadcast)

	selfBaseURL := config.SelfBaseURL
	if selfBaseURL == "" {
		selfBaseURL = "http://localhost:" + config.Port
	}
	benchTimeout := 60 * time.Second
	if config.BenchTimeout != "" {
		if parsed, err := time.ParseDuration(config.BenchTimeout); err == nil {
			benchTimeout = parsed
		} else {
			logger.Warn("invalid bench_timeout, using default", "value", config.BenchTimeout)
		}
	}

	executor, err := benchservice.NewExecutor(resolver, buildScorer(ctx, resolver, config.ScoreModel, logger, serveropsChainedTracker), dbInstance, benchservice.ExecutorConfig{
		BaseURL: selfBaseURL,
		Timeout: benchTimeout,
	}, nil, logger, serveropsChainedTracker)
	if err != nil {
		return nil, cleanup, err
	}
	loader, err := benchservice.NewLoader()
	if err != nil {
		return nil, cleanup, err
	}
	benchService, err := benchservice.New(executor, loader, dbInstance, logger)
	if err != nil {
		return nil, cleanup, err
	}
	benchService = benchservice.WithActivityTracker(benchService, serveropsChainedTracker)

	selectorService, err := selectorservice.New(dbInstance, resolver, logger)
	if err != nil {
		return nil, cleanup, err
	}
	selectorService = selectorservice.WithActivityTracker(selectorService, serveropsChainedTracker)
	benchapi.AddBenchRoutes(mux, benchService, selectorService)

	// Reload triggers arrive over the bus so every node drops its
	// snapshot and provider cache, not just the one that was asked.
	if pubsub != nil {
		reloadCh := make(chan []byte, 10)
		sub, err := pubsub.Stream(ctx, ReloadSubject, reloadCh)
		if err != nil {
			return nil, cleanup, err
		}
		go func() {
			defer sub.Unsubscribe()
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-reloadCh:
					if !ok {
						return
					}
					if err := resolver.Reload(ctx); err != nil {
						logger.Error("configuration reload failed", "error", err)
					}
				}
			}
		}()
		cleanup = func() error {
			return sub.Unsubscribe()
		}
	}

	return benchService, cleanup, nil
}

// buildScorer resolves the embedding client behind the configured score
// model. Benchmarks run unscored when the model is unavailable.
func buildScorer(ctx context.Context, resolver taskresolver.Resolver, scoreModelKey string, logger *slog.Logger, tracker libtracker.ActivityTracker) *qualityscore.Scorer {
	if scoreModelKey == "" {
		return nil
	}
	providerName, model, err := runtimetypes.SplitModelKey(scoreModelKey)
	if err != nil {
		logger.Warn("invalid score model key, benchmarks run unscored", "key", scoreModelKey, "error", err)
		return nil
	}
	provider, err := resolver.ProviderByName(ctx, providerName)
	if err != nil {
		logger.Warn("score model provider unavailable, benchmarks run unscored", "provider", providerName, "error", err)
		return nil
	}
	client, err := provider.GetEmbedConnection(ctx)
	if err != nil {
		logger.Warn("score model has no embedding capability, benchmarks run unscored", "key", scoreModelKey, "error", err)
		return nil
	}
	scorer, err := qualityscore.New(client, model, tracker)
	if err != nil {
		logger.Warn("failed to build quality scorer, benchmarks run unscored", "error", err)
		return nil
	}
	return scorer
}
