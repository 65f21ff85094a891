package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	ledgerdomain "github.com/smallbiznis/subsight/internal/ledger/domain"
	storedomain "github.com/smallbiznis/subsight/internal/store/domain"
)

const insertRunSQL = `INSERT INTO generation_runs
	(id, seed, source, parameters, user_count, subscription_count, payment_count, activity_count, loaded_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// copyReplace loads through COPY on a pgx connection borrowed from the pool.
func (s *Service) copyReplace(ctx context.Context, dataset ledgerdomain.Dataset, run storedomain.GenerationRun) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	return conn.Raw(func(driverConn any) error {
		stdConn, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("copy requires a pgx connection, got %T", driverConn)
		}
		return pgx.BeginFunc(ctx, stdConn.Conn(), func(tx pgx.Tx) error {
			return s.copyAll(ctx, tx, dataset, run)
		})
	})
}

func (s *Service) copyAll(ctx context.Context, tx pgx.Tx, dataset ledgerdomain.Dataset, run storedomain.GenerationRun) error {
	if _, err := tx.Exec(ctx, "TRUNCATE TABLE users, subscriptions, payments, user_activity"); err != nil {
		return fmt.Errorf("truncate ledger tables: %w", err)
	}

	users := dataset.Users()
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"users"},
		[]string{"user_id", "age", "country", "device", "acquisition_channel", "signup_date"},
		pgx.CopyFromSlice(len(users), func(i int) ([]any, error) {
			u := users[i]
			return []any{u.ID, u.Age, u.Country, u.Device, u.AcquisitionChannel, u.SignupDate}, nil
		}),
	); err != nil {
		return fmt.Errorf("copy users: %w", err)
	}

	subs := dataset.Subscriptions()
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"subscriptions"},
		[]string{"subscription_id", "user_id", "plan", "monthly_price", "start_date", "end_date", "status"},
		pgx.CopyFromSlice(len(subs), func(i int) ([]any, error) {
			p := subs[i]
			return []any{p.ID, p.UserID, p.Plan, p.MonthlyPrice.Float64(), p.StartDate, p.EndDate, string(p.Status)}, nil
		}),
	); err != nil {
		return fmt.Errorf("copy subscriptions: %w", err)
	}

	payments := dataset.Payments()
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"payments"},
		[]string{"payment_id", "user_id", "subscription_id", "amount", "payment_date", "payment_status"},
		pgx.CopyFromSlice(len(payments), func(i int) ([]any, error) {
			p := payments[i]
			return []any{p.ID, p.UserID, p.SubscriptionID, p.Amount.Float64(), p.PaymentDate, string(p.Status)}, nil
		}),
	); err != nil {
		return fmt.Errorf("copy payments: %w", err)
	}

	activity := dataset.Activity()
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"user_activity"},
		[]string{"user_id", "activity_date", "watch_time_minutes"},
		pgx.CopyFromSlice(len(activity), func(i int) ([]any, error) {
			e := activity[i]
			return []any{e.UserID, e.ActivityDate, e.WatchTimeMinutes}, nil
		}),
	); err != nil {
		return fmt.Errorf("copy user_activity: %w", err)
	}

	var params []byte
	if run.Parameters != nil {
		raw, err := json.Marshal(run.Parameters)
		if err != nil {
			return err
		}
		params = raw
	}
	if _, err := tx.Exec(ctx, insertRunSQL,
		int64(run.ID), run.Seed, run.Source, params,
		run.UserCount, run.SubscriptionCount, run.PaymentCount, run.ActivityCount,
		run.LoadedAt,
	); err != nil {
		return fmt.Errorf("record generation run: %w", err)
	}
	return nil
}
