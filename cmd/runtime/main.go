package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/contenox/modelrouter/apiframework"
	"github.com/contenox/modelrouter/benchservice"
	libbus "github.com/contenox/modelrouter/libbus"
	libdb "github.com/contenox/modelrouter/libdbexec"
	"github.com/contenox/modelrouter/libkvstore"
	libroutine "github.com/contenox/modelrouter/libroutine"
	"github.com/contenox/modelrouter/runtimetypes"
	"github.com/contenox/modelrouter/serverapi"
	"github.com/google/uuid"
)

var nodeInstanceID = "NODE-Instance-UNSET-dev"

func initDatabase(ctx context.Context, cfg *serverapi.Config) (libdb.DBManager, error) {
	var dbInstance libdb.DBManager
	var err error

	switch {
	case cfg.DatabaseURL != "":
		err = libroutine.NewRoutine(10, time.Minute).ExecuteWithRetry(ctx, time.Second, 3, func(ctx context.Context) error {
			dbInstance, err = libdb.NewPostgresDBManager(ctx, cfg.DatabaseURL, runtimetypes.Schema)
			return err
		})
	case cfg.SQLitePath != "":
		dbInstance, err = libdb.NewSQLiteDBManager(ctx, cfg.SQLitePath, runtimetypes.SchemaSQLite)
	default:
		return nil, fmt.Errorf("either DATABASE_URL or SQLITE_PATH is required")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	return dbInstance, nil
}

func initPubSub(ctx context.Context, cfg *serverapi.Config) (libbus.Messenger, error) {
	if cfg.NATSURL == "" {
		return nil, nil
	}
	var ps libbus.Messenger
	err := libroutine.NewRoutine(10, time.Minute).ExecuteWithRetry(ctx, time.Second, 3, func(ctx context.Context) error {
		var err error
		ps, err = libbus.NewPubSub(ctx, &libbus.Config{
			NATSURL:      cfg.NATSURL,
			NATSPassword: cfg.NATSPassword,
			NATSUser:     cfg.NATSUser,
		})
		return err
	})
	return ps, err
}

func initKV(ctx context.Context, cfg *serverapi.Config) (libkvstore.KVManager, libkvstore.KVExec, error) {
	if cfg.KVAddr == "" {
		return nil, nil, nil
	}
	var manager libkvstore.KVManager
	err := libroutine.NewRoutine(10, time.Minute).ExecuteWithRetry(ctx, time.Second, 3, func(ctx context.Context) error {
		var err error
		manager, err = libkvstore.NewManager(libkvstore.Config{
			KVAddr:     cfg.KVAddr,
			KVPassword: cfg.KVPassword,
		}, 10*time.Second)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	exec, err := manager.Executor(ctx)
	if err != nil {
		manager.Close()
		return nil, nil, err
	}
	return manager, exec, nil
}

// startSweepLoop re-benchmarks every enabled model record on a fixed
// interval, breaker-guarded so a misbehaving vendor backs the loop off
// instead of hammering it.
func startSweepLoop(ctx context.Context, cfg *serverapi.Config, benchService benchservice.Service) {
	if cfg.SweepInterval == "" {
		return
	}
	interval, err := time.ParseDuration(cfg.SweepInterval)
	if err != nil || interval <= 0 {
		log.Printf("%s invalid SWEEP_INTERVAL %q, sweep loop disabled", nodeInstanceID, cfg.SweepInterval)
		return
	}
	libroutine.GetGroup().StartLoop(ctx, &libroutine.LoopConfig{
		Key:          "bench-sweep",
		Threshold:    3,
		ResetTimeout: time.Minute,
		Interval:     interval,
		Operation: func(ctx context.Context) error {
			results, err := benchService.Sweep(ctx, nil, nil)
			if err != nil {
				return err
			}
			log.Printf("%s benchmark sweep completed %d case runs", nodeInstanceID, len(results))
			return nil
		},
		OnError: func(err error) {
			log.Printf("%s benchmark sweep failed: %v", nodeInstanceID, err)
		},
	})
}

func main() {
	nodeInstanceID = uuid.NewString()[0:8]
	config := &serverapi.Config{}
	if err := serverapi.LoadConfig(config); err != nil {
		log.Fatalf("%s: failed to load configuration: %v", nodeInstanceID, err)
	}
	if config.Port == "" {
		config.Port = "8080"
	}
	ctx := context.TODO()
	cleanups := []func() error{}
	defer func() {
		for _, cleanup := range cleanups {
			if err := cleanup(); err != nil {
				log.Printf("%s cleanup failed: %v", nodeInstanceID, err)
			}
		}
	}()

	dbInstance, err := initDatabase(ctx, config)
	if err != nil {
		log.Fatalf("%s initializing database failed: %v", nodeInstanceID, err)
	}
	defer dbInstance.Close()

	ps, err := initPubSub(ctx, config)
	if err != nil {
		log.Fatalf("%s initializing PubSub failed: %v", nodeInstanceID, err)
	}
	if ps != nil {
		defer ps.Close()
	}

	kvManager, kvExec, err := initKV(ctx, config)
	if err != nil {
		log.Fatalf("%s initializing KV store failed: %v", nodeInstanceID, err)
	}
	if kvManager != nil {
		defer kvManager.Close()
	}

	staticCfg, err := serverapi.LoadStaticConfig(config.StaticConfigPath)
	if err != nil {
		log.Fatalf("%s loading static configuration failed: %v", nodeInstanceID, err)
	}

	internalMux := http.NewServeMux()
	benchService, cleanup, err := serverapi.New(ctx, internalMux, nodeInstanceID, config, dbInstance, ps, kvExec, staticCfg)
	cleanups = append(cleanups, cleanup)
	if err != nil {
		log.Fatalf("%s initializing API handler failed: %v", nodeInstanceID, err)
	}

	startSweepLoop(ctx, config, benchService)

	var apiHandler http.Handler = internalMux
	apiHandler = apiframework.RequestIDMiddleware(apiHandler)
	apiHandler = apiframework.TracingMiddleware(apiHandler)

	mux := http.NewServeMux()
	mux.Handle("/", apiHandler)
	port := config.Port
	log.Printf("%s starting server on :%s", nodeInstanceID, port)
	if err := http.ListenAndServe(config.Addr+":"+port, mux); err != nil {
		log.Fatalf("%s server failed: %v", nodeInstanceID, err)
	}
}
