package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subsight/internal/clock"
	"github.com/smallbiznis/subsight/internal/config"
	ledgerdomain "github.com/smallbiznis/subsight/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/subsight/internal/observability/metrics"
	storedomain "github.com/smallbiznis/subsight/internal/store/domain"
	"github.com/smallbiznis/subsight/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultBatchSize = 1000

// loadOrder is parent-first; clearing walks it backwards.
var loadOrder = []string{"users", "subscriptions", "payments", "user_activity"}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	DBConfig   db.Config
	Config     config.Config
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	dbType     string
	batchSize  int
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) storedomain.Loader {
	batchSize := p.Config.DBLoadBatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("store.loader"),
		genID:      p.GenID,
		clock:      p.Clock,
		dbType:     p.DBConfig.Type,
		batchSize:  batchSize,
		obsMetrics: p.ObsMetrics,
	}
}

// Replace swaps the contents of the four ledger tables for dataset in one
// transaction and records the run.
func (s *Service) Replace(ctx context.Context, dataset ledgerdomain.Dataset, info storedomain.RunInfo) (storedomain.GenerationRun, error) {
	run, err := s.newRun(dataset, info)
	if err != nil {
		return storedomain.GenerationRun{}, err
	}

	began := time.Now()
	if s.dbType == db.TypePostgres {
		err = s.copyReplace(ctx, dataset, run)
	} else {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.batchReplace(tx, dataset, run)
		})
	}
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return storedomain.GenerationRun{}, fmt.Errorf("%w: %v", storedomain.ErrDuplicateRecord, err)
		}
		return storedomain.GenerationRun{}, fmt.Errorf("replace dataset: %w", err)
	}

	counts := dataset.Counts()
	s.obsMetrics.AddRowsLoaded("users", counts.Users)
	s.obsMetrics.AddRowsLoaded("subscriptions", counts.Subscriptions)
	s.obsMetrics.AddRowsLoaded("payments", counts.Payments)
	s.obsMetrics.AddRowsLoaded("user_activity", counts.Activity)
	s.obsMetrics.ObserveLoad(time.Since(began))

	s.log.Info("dataset loaded",
		zap.String("run_id", run.ID.String()),
		zap.String("source", run.Source),
		zap.String("db_type", s.dbType),
		zap.Int("users", counts.Users),
		zap.Int("subscriptions", counts.Subscriptions),
		zap.Int("payments", counts.Payments),
		zap.Int("activity", counts.Activity),
		zap.Duration("elapsed", time.Since(began)),
	)
	return run, nil
}

func (s *Service) LatestRun(ctx context.Context) (storedomain.GenerationRun, error) {
	var run storedomain.GenerationRun
	err := s.db.WithContext(ctx).
		Order("loaded_at DESC").
		Order("id DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return storedomain.GenerationRun{}, storedomain.ErrNoRuns
		}
		return storedomain.GenerationRun{}, err
	}
	return run, nil
}

func (s *Service) newRun(dataset ledgerdomain.Dataset, info storedomain.RunInfo) (storedomain.GenerationRun, error) {
	source := info.Source
	if source == "" {
		source = storedomain.SourceGenerated
	}

	run := storedomain.GenerationRun{
		ID:       s.genID.Generate(),
		Source:   source,
		LoadedAt: s.clock.Now().UTC(),
	}
	counts := dataset.Counts()
	run.UserCount = counts.Users
	run.SubscriptionCount = counts.Subscriptions
	run.PaymentCount = counts.Payments
	run.ActivityCount = counts.Activity

	if info.Request != nil {
		run.Seed = strconv.FormatUint(info.Request.Seed, 10)
		params, err := requestParameters(*info.Request)
		if err != nil {
			return storedomain.GenerationRun{}, err
		}
		run.Parameters = params
	}
	return run, nil
}

func requestParameters(req ledgerdomain.GenerateRequest) (datatypes.JSONMap, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode run parameters: %w", err)
	}
	params := datatypes.JSONMap{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("encode run parameters: %w", err)
	}
	// Seeds above 2^53 do not survive a JSON number round trip.
	params["seed"] = strconv.FormatUint(req.Seed, 10)
	return params, nil
}

func (s *Service) batchReplace(tx *gorm.DB, dataset ledgerdomain.Dataset, run storedomain.GenerationRun) error {
	for i := len(loadOrder) - 1; i >= 0; i-- {
		if err := tx.Exec("DELETE FROM " + loadOrder[i]).Error; err != nil {
			return fmt.Errorf("clear %s: %w", loadOrder[i], err)
		}
	}

	if users := dataset.Users(); len(users) > 0 {
		if err := tx.CreateInBatches(users, s.batchSize).Error; err != nil {
			return fmt.Errorf("insert users: %w", err)
		}
	}
	if subs := dataset.Subscriptions(); len(subs) > 0 {
		if err := tx.CreateInBatches(subs, s.batchSize).Error; err != nil {
			return fmt.Errorf("insert subscriptions: %w", err)
		}
	}
	if payments := dataset.Payments(); len(payments) > 0 {
		if err := tx.CreateInBatches(payments, s.batchSize).Error; err != nil {
			return fmt.Errorf("insert payments: %w", err)
		}
	}
	if activity := dataset.Activity(); len(activity) > 0 {
		if err := tx.CreateInBatches(activity, s.batchSize).Error; err != nil {
			return fmt.Errorf("insert user_activity: %w", err)
		}
	}

	if err := tx.Create(&run).Error; err != nil {
		return fmt.Errorf("record generation run: %w", err)
	}
	return nil
}
