// Package testkit builds deterministic vitals fixtures for tests: a
// correlated reference population plus optional injected flaws for
// exercising the repairer.
package testkit

import (
	"fmt"
	"math/rand"

	"vitalsynth/domain/vitals"
	"vitalsynth/internal/repair"
)

// ReferenceConfig configures the fixture generator
type ReferenceConfig struct {
	NPerArm int
	Seed    int64
}

// DefaultReferenceConfig returns a population large enough for covariance
// estimation in every (visit, arm) stratum.
func DefaultReferenceConfig() ReferenceConfig {
	return ReferenceConfig{NPerArm: 40, Seed: 42}
}

// GenerateReference produces a clean, correlated reference population:
// systolic tracks diastolic (SBP = DBP + 45 + noise) and heart rate is
// independent, so correlation-preservation metrics have structure to find.
func GenerateReference(cfg ReferenceConfig) []vitals.Record {
	rng := rand.New(rand.NewSource(cfg.Seed))

	records := make([]vitals.Record, 0, cfg.NPerArm*len(vitals.Arms())*len(vitals.Visits()))
	for armIdx, arm := range vitals.Arms() {
		for i := 0; i < cfg.NPerArm; i++ {
			id := fmt.Sprintf("REF-%04d", armIdx*cfg.NPerArm+i+1)
			// Per-subject baselines keep within-subject visits coherent.
			dbpBase := 78 + rng.NormFloat64()*7
			hrBase := 72 + rng.NormFloat64()*8
			tempBase := 36.8 + rng.NormFloat64()*0.25

			for _, visit := range vitals.Visits() {
				dbp := dbpBase + rng.NormFloat64()*3
				sbp := dbp + 45 + rng.NormFloat64()*6
				rec := vitals.Record{
					SubjectID:    id,
					VisitName:    visit,
					TreatmentArm: arm,
				}
				rec.SetValue(vitals.ColSystolicBP, sbp)
				rec.SetValue(vitals.ColDiastolicBP, dbp)
				rec.SetValue(vitals.ColHeartRate, hrBase+rng.NormFloat64()*4)
				rec.SetValue(vitals.ColTemperature, tempBase+rng.NormFloat64()*0.1)

				// Keep fixtures valid without calling the enforcer, so
				// enforcer tests can use these rows as ground truth.
				if rec.SystolicBP-rec.DiastolicBP < vitals.MinBPDifferential {
					rec.SystolicBP = rec.DiastolicBP + vitals.MinBPDifferential
				}
				clampRecord(&rec)
				records = append(records, rec)
			}
		}
	}
	return records
}

// GenerateReferenceDataset wraps GenerateReference in a ReferenceDataset
// with an empty repair report.
func GenerateReferenceDataset(cfg ReferenceConfig) vitals.ReferenceDataset {
	return vitals.ReferenceDataset{Records: GenerateReference(cfg)}
}

// RawWithFlaws converts clean records to raw form and injects the named
// defects: one duplicated (subject, visit) pair, one out-of-range systolic
// value, one missing heart rate, and one inconsistent treatment arm.
func RawWithFlaws(records []vitals.Record) []repair.RawRecord {
	raw := make([]repair.RawRecord, 0, len(records)+1)
	for _, rec := range records {
		raw = append(raw, repair.FromRecord(rec))
	}
	if len(raw) < 4 {
		return raw
	}

	// Duplicate of the first row.
	dup := raw[0]
	raw = append(raw, dup)

	// Out-of-range systolic.
	bad := 300.0
	raw[1].SystolicBP = &bad

	// Missing heart rate.
	raw[2].HeartRate = nil

	// Arm flip on one visit of a multi-visit subject.
	flipped := string(vitals.ArmPlacebo)
	if raw[3].TreatmentArm == flipped {
		flipped = string(vitals.ArmActive)
	}
	raw[3].TreatmentArm = flipped

	return raw
}

func clampRecord(rec *vitals.Record) {
	for _, c := range vitals.Columns() {
		rec.SetValue(c, vitals.ColumnRange(c).Clamp(rec.Value(c)))
	}
}
