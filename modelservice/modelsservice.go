package modelservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contenox/modelrouter/apiframework"
	"github.com/contenox/modelrouter/internal/modelrepo"
	libdb "github.com/contenox/modelrouter/libdbexec"
	"github.com/contenox/modelrouter/runtimetypes"
)

var ErrInvalidModel = errors.New("invalid model record data")

type service struct {
	dbInstance          libdb.DBManager
	immutableScoreModel string
}

type Service interface {
	Append(ctx context.Context, record *runtimetypes.ModelRecord) error
	Get(ctx context.Context, key string) (*runtimetypes.ModelRecord, error)
	Update(ctx context.Context, record *runtimetypes.ModelRecord) error
	List(ctx context.Context, createdAtCursor *time.Time, limit int) ([]*runtimetypes.ModelRecord, error)
	ListForTask(ctx context.Context, task string) ([]*runtimetypes.ModelRecord, error)
	Delete(ctx context.Context, key string) error
}

// New builds the model record service. The scoring embedding model cannot
// be deleted while benchmarks depend on it.
func New(db libdb.DBManager, scoreModelKey string) Service {
	return &service{
		dbInstance:          db,
		immutableScoreModel: scoreModelKey,
	}
}

func (s *service) Append(ctx context.Context, record *runtimetypes.ModelRecord) error {
	if err := validate(record); err != nil {
		return err
	}
	tx := s.dbInstance.WithoutTransaction()
	storeInstance := runtimetypes.New(tx)
	count, err := storeInstance.EstimateModelRecordCount(ctx)
	if err != nil {
		return err
	}
	err = storeInstance.EnforceMaxRowCount(ctx, count)
	if err != nil {
		return err
	}
	return storeInstance.AppendModelRecord(ctx, record)
}

func (s *service) Get(ctx context.Context, key string) (*runtimetypes.ModelRecord, error) {
	tx := s.dbInstance.WithoutTransaction()
	return runtimetypes.New(tx).GetModelRecord(ctx, key)
}

func (s *service) Update(ctx context.Context, record *runtimetypes.ModelRecord) error {
	if err := validate(record); err != nil {
		return err
	}
	tx := s.dbInstance.WithoutTransaction()
	storeInstance := runtimetypes.New(tx)

	return storeInstance.UpdateModelRecord(ctx, record)
}

func (s *service) List(ctx context.Context, createdAtCursor *time.Time, limit int) ([]*runtimetypes.ModelRecord, error) {
	tx := s.dbInstance.WithoutTransaction()
	return runtimetypes.New(tx).ListModelRecords(ctx, createdAtCursor, limit)
}

func (s *service) ListForTask(ctx context.Context, task string) ([]*runtimetypes.ModelRecord, error) {
	if _, err := modelrepo.ParseTask(task); err != nil {
		return nil, fmt.Errorf("%w %w: %s", apiframework.ErrBadRequest, ErrInvalidModel, err)
	}
	tx := s.dbInstance.WithoutTransaction()
	return runtimetypes.New(tx).ListModelRecordsForTask(ctx, task)
}

func (s *service) Delete(ctx context.Context, key string) error {
	tx := s.dbInstance.WithoutTransaction()
	if key == s.immutableScoreModel {
		return apiframework.ErrImmutableModel
	}
	return runtimetypes.New(tx).DeleteModelRecord(ctx, key)
}

func validate(record *runtimetypes.ModelRecord) error {
	if record.Provider == "" || record.ModelName == "" {
		return fmt.Errorf("%w %w: provider and model name are required", apiframework.ErrBadRequest, ErrInvalidModel)
	}
	if len(record.Tasks) == 0 {
		return fmt.Errorf("%w %w: at least one task is required", apiframework.ErrBadRequest, ErrInvalidModel)
	}
	for _, task := range record.Tasks {
		if _, err := modelrepo.ParseTask(task); err != nil {
			return fmt.Errorf("%w %w: %s", apiframework.ErrBadRequest, ErrInvalidModel, err)
		}
	}
	return nil
}

func (s *service) GetServiceName() string {
	return "modelservice"
}
