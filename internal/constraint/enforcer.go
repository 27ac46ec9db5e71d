// Package constraint applies the clinical validity rules every generated
// record must satisfy: per-field range clipping and the systolic/diastolic
// differential floor.
package constraint

import (
	"vitalsynth/domain/vitals"
)

// Enforce returns a fresh slice in which every record satisfies the field
// ranges and the BP differential invariant. The input is never mutated.
//
// Order matters: clipping runs first, then differential repair. Clipping can
// itself create or remove a differential violation, so swapping the two
// steps changes outcomes. This order is deliberate.
func Enforce(records []vitals.Record) []vitals.Record {
	out := make([]vitals.Record, len(records))
	for i, rec := range records {
		out[i] = EnforceRecord(rec)
	}
	return out
}

// EnforceRecord applies the clip-then-differential policy to one record
func EnforceRecord(rec vitals.Record) vitals.Record {
	// Step 1: clamp each field to its closed interval.
	for _, c := range vitals.Columns() {
		rec.SetValue(c, vitals.ColumnRange(c).Clamp(rec.Value(c)))
	}

	// Step 2: restore the differential floor.
	if rec.SystolicBP-rec.DiastolicBP < vitals.MinBPDifferential {
		// Swap only when the swap alone resolves the violation.
		if rec.DiastolicBP-rec.SystolicBP >= vitals.MinBPDifferential &&
			swappable(rec.DiastolicBP, rec.SystolicBP) {
			rec.SystolicBP, rec.DiastolicBP = rec.DiastolicBP, rec.SystolicBP
		} else {
			// Push DBP down to restore the margin, re-clipping if it
			// falls below its floor. With SBP already clipped to >= 95
			// the re-clip can never reintroduce a violation.
			rec.DiastolicBP = rec.SystolicBP - vitals.MinBPDifferential
			dbpRange := vitals.ColumnRange(vitals.ColDiastolicBP)
			if float64(rec.DiastolicBP) < dbpRange.Min {
				rec.DiastolicBP = int(dbpRange.Min)
			}
		}
	}
	return rec
}

// swappable reports whether swapped SBP/DBP values stay inside both ranges
func swappable(newSBP, newDBP int) bool {
	return vitals.ColumnRange(vitals.ColSystolicBP).Contains(float64(newSBP)) &&
		vitals.ColumnRange(vitals.ColDiastolicBP).Contains(float64(newDBP))
}

// Audit verifies every record satisfies the invariants, returning a
// RangeViolation error naming the first offender. Meant to run after
// Enforce as a defense against logic defects, not as input validation.
func Audit(records []vitals.Record) error {
	for _, rec := range records {
		for _, c := range vitals.Columns() {
			if !vitals.ColumnRange(c).Contains(rec.Value(c)) {
				return vitals.NewRangeViolationError(rec.SubjectID, rec.VisitName, string(c), rec.Value(c))
			}
		}
		if rec.SystolicBP-rec.DiastolicBP < vitals.MinBPDifferential {
			return vitals.NewRangeViolationError(rec.SubjectID, rec.VisitName, "bp_differential",
				float64(rec.SystolicBP-rec.DiastolicBP))
		}
	}
	return nil
}
