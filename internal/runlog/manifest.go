// Package runlog records metadata about one generation invocation so a
// caller can reproduce or audit it later. Pure metadata; nothing here
// persists anything.
package runlog

import (
	"time"

	"github.com/google/uuid"

	"vitalsynth/domain/vitals"
)

// Manifest describes one completed generation run
type Manifest struct {
	RunID        string        `json:"run_id"`
	Method       vitals.Method `json:"method"`
	NPerArm      int           `json:"n_per_arm"`
	TargetEffect float64       `json:"target_effect"`
	Seed         int64         `json:"seed"`
	RecordCount  int           `json:"record_count"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`
}

// NewManifest stamps a fresh manifest for a run that produced records.
// The seed recorded is the one actually used, so an unseeded request is
// still reproducible after the fact.
func NewManifest(req vitals.GenerationRequest, seed int64, recordCount int, startedAt time.Time) Manifest {
	return Manifest{
		RunID:        uuid.NewString(),
		Method:       req.Method,
		NPerArm:      req.NPerArm,
		TargetEffect: req.TargetEffect,
		Seed:         seed,
		RecordCount:  recordCount,
		StartedAt:    startedAt.UTC(),
		Duration:     time.Since(startedAt),
	}
}
