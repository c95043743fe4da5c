package storage

import (
	"context"

	"lidoDigest/internal/model"
)

// Archive defines a sink for completed digest runs.
type Archive interface {
	PutRun(ctx context.Context, run model.DigestRun) error
}
