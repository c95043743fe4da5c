package pipeline

import (
	"context"

	"lidoDigest/internal/dune"
	"lidoDigest/internal/model"
)

// SnapshotSource serves datasets from a file written by the fetch command.
type SnapshotSource struct {
	Path string
}

func (s SnapshotSource) Load(_ context.Context, _ dune.Params) (model.Datasets, error) {
	return model.ReadSnapshot(s.Path)
}
