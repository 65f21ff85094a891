package domain

import (
	"context"
	"errors"

	ledgerdomain "github.com/smallbiznis/subsight/internal/ledger/domain"
)

var (
	ErrNoRuns          = errors.New("no_generation_runs")
	ErrDuplicateRecord = errors.New("duplicate_record")
)

// RunInfo describes where a dataset came from.
type RunInfo struct {
	Source  string
	Request *ledgerdomain.GenerateRequest
}

// Loader replaces the analytical tables with a dataset.
type Loader interface {
	Replace(ctx context.Context, dataset ledgerdomain.Dataset, info RunInfo) (GenerationRun, error)
	LatestRun(ctx context.Context) (GenerationRun, error)
}
