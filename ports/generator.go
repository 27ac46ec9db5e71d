package ports

import (
	"context"

	"vitalsynth/domain/vitals"
)

// Generator turns a validated request into candidate vitals records using
// a repaired reference dataset as its parameter source.
//
// Implementations must be stateless: every call constructs its own seeded
// random source from the request, so identical (request, reference) pairs
// with a seed produce identical output and concurrent calls never share
// generator state.
type Generator interface {
	// Name reports which request method this strategy serves
	Name() vitals.Method

	// Generate returns exactly n_per_arm x |arms| x |visits| records,
	// already passed through constraint enforcement.
	Generate(ctx context.Context, req vitals.GenerationRequest, ref vitals.ReferenceDataset) ([]vitals.Record, error)
}
