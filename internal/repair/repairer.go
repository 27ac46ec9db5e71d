// Package repair cleans a raw baseline dataset before it parameterizes
// generators: removes duplicates, clips out-of-range values, restores the
// BP differential, reconciles treatment arms, and imputes missing numerics.
package repair

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"vitalsynth/domain/vitals"
)

// RawRecord is a vitals observation as read from an external source.
// Numeric fields are pointers so a missing cell is distinguishable from a
// zero; the repairer imputes nil values.
type RawRecord struct {
	SubjectID    string   `json:"subject_id"`
	VisitName    string   `json:"visit_name"`
	TreatmentArm string   `json:"treatment_arm"`
	SystolicBP   *float64 `json:"systolic_bp"`
	DiastolicBP  *float64 `json:"diastolic_bp"`
	HeartRate    *float64 `json:"heart_rate"`
	Temperature  *float64 `json:"temperature"`
}

// FromRecord converts a typed record back to raw form, used when re-running
// repair over already-clean data.
func FromRecord(rec vitals.Record) RawRecord {
	sbp := float64(rec.SystolicBP)
	dbp := float64(rec.DiastolicBP)
	hr := float64(rec.HeartRate)
	temp := rec.Temperature
	return RawRecord{
		SubjectID:    rec.SubjectID,
		VisitName:    string(rec.VisitName),
		TreatmentArm: string(rec.TreatmentArm),
		SystolicBP:   &sbp,
		DiastolicBP:  &dbp,
		HeartRate:    &hr,
		Temperature:  &temp,
	}
}

func (r RawRecord) value(c vitals.Column) *float64 {
	switch c {
	case vitals.ColSystolicBP:
		return r.SystolicBP
	case vitals.ColDiastolicBP:
		return r.DiastolicBP
	case vitals.ColHeartRate:
		return r.HeartRate
	case vitals.ColTemperature:
		return r.Temperature
	}
	return nil
}

// Repair validates and cleans raw records into a ReferenceDataset.
// It never deletes a row for having out-of-range values; only exact
// (SubjectID, VisitName) duplicates are dropped. Running Repair over its
// own output produces zero further changes.
func Repair(raw []RawRecord) (vitals.ReferenceDataset, error) {
	if err := checkSchema(raw); err != nil {
		return vitals.ReferenceDataset{}, err
	}

	report := vitals.RepairReport{RowsIn: len(raw)}

	rows := dedupe(raw, &report)
	reconcileArms(rows, &report)
	impute(rows, &report)

	records := make([]vitals.Record, len(rows))
	for i, row := range rows {
		records[i] = finalize(row, &report)
	}

	report.RowsOut = len(records)
	return vitals.ReferenceDataset{Records: records, Report: report}, nil
}

// checkSchema rejects records missing the identity fields outright.
// Missing numerics are repairable; a row without subject, visit, or arm
// is not attributable to anything and fails the whole call.
func checkSchema(raw []RawRecord) error {
	for i, row := range raw {
		if row.SubjectID == "" {
			return vitals.NewSchemaError("subject_id", "missing in row %d", i)
		}
		if _, err := vitals.ParseVisit(row.VisitName); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if row.TreatmentArm == "" {
			return vitals.NewSchemaError("treatment_arm", "missing in row %d for subject %s", i, row.SubjectID)
		}
		if _, err := vitals.ParseArm(row.TreatmentArm); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// dedupe drops repeated (SubjectID, VisitName) pairs, keeping the first
func dedupe(raw []RawRecord, report *vitals.RepairReport) []RawRecord {
	seen := make(map[string]bool, len(raw))
	out := make([]RawRecord, 0, len(raw))
	for _, row := range raw {
		key := row.SubjectID + "|" + row.VisitName
		if seen[key] {
			report.Duplicates++
			report.Fixes = append(report.Fixes, vitals.RepairFix{
				SubjectID: row.SubjectID,
				Visit:     vitals.Visit(row.VisitName),
				Operation: "duplicate_removed",
				Detail:    "kept first occurrence",
			})
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

// reconcileArms assigns each subject its most frequent arm across visits.
// Ties resolve to the arm seen first, which keeps the pass deterministic.
func reconcileArms(rows []RawRecord, report *vitals.RepairReport) {
	type armCount struct {
		counts map[string]int
		first  string
	}
	bySubject := make(map[string]*armCount)
	for _, row := range rows {
		ac := bySubject[row.SubjectID]
		if ac == nil {
			ac = &armCount{counts: make(map[string]int), first: row.TreatmentArm}
			bySubject[row.SubjectID] = ac
		}
		ac.counts[row.TreatmentArm]++
	}

	majority := make(map[string]string, len(bySubject))
	for subject, ac := range bySubject {
		if len(ac.counts) == 1 {
			majority[subject] = ac.first
			continue
		}
		best, bestN := ac.first, ac.counts[ac.first]
		for _, arm := range []string{string(vitals.ArmActive), string(vitals.ArmPlacebo)} {
			if n := ac.counts[arm]; n > bestN {
				best, bestN = arm, n
			}
		}
		majority[subject] = best
	}

	for i := range rows {
		want := majority[rows[i].SubjectID]
		if rows[i].TreatmentArm != want {
			report.Fixes = append(report.Fixes, vitals.RepairFix{
				SubjectID: rows[i].SubjectID,
				Visit:     vitals.Visit(rows[i].VisitName),
				Field:     "treatment_arm",
				Operation: "arm_reconciled",
				Detail:    fmt.Sprintf("%s -> %s (majority)", rows[i].TreatmentArm, want),
			})
			rows[i].TreatmentArm = want
		}
	}
}

// impute fills missing numerics from the subject's own median for that
// field when one exists, otherwise from the cohort median.
func impute(rows []RawRecord, report *vitals.RepairReport) {
	for _, c := range vitals.Columns() {
		subjectValues := make(map[string][]float64)
		var cohort []float64
		for _, row := range rows {
			if v := row.value(c); v != nil {
				subjectValues[row.SubjectID] = append(subjectValues[row.SubjectID], *v)
				cohort = append(cohort, *v)
			}
		}

		for i := range rows {
			if rows[i].value(c) != nil {
				continue
			}
			source := "subject_median"
			pool := subjectValues[rows[i].SubjectID]
			if len(pool) == 0 {
				source = "cohort_median"
				pool = cohort
			}
			if len(pool) == 0 {
				// Nothing to impute from; fall back to the range midpoint.
				r := vitals.ColumnRange(c)
				mid := (r.Min + r.Max) / 2
				pool = []float64{mid}
				source = "range_midpoint"
			}
			med, err := stats.Median(pool)
			if err != nil {
				med = pool[0]
			}
			setValue(&rows[i], c, med)
			report.Fixes = append(report.Fixes, vitals.RepairFix{
				SubjectID: rows[i].SubjectID,
				Visit:     vitals.Visit(rows[i].VisitName),
				Field:     string(c),
				Operation: "imputed",
				Detail:    fmt.Sprintf("%s = %.1f", source, med),
			})
		}
	}
}

func setValue(row *RawRecord, c vitals.Column, v float64) {
	switch c {
	case vitals.ColSystolicBP:
		row.SystolicBP = &v
	case vitals.ColDiastolicBP:
		row.DiastolicBP = &v
	case vitals.ColHeartRate:
		row.HeartRate = &v
	case vitals.ColTemperature:
		row.Temperature = &v
	}
}

// finalize clips each field to its valid range and restores the BP
// differential, recording every change it makes.
func finalize(row RawRecord, report *vitals.RepairReport) vitals.Record {
	rec := vitals.Record{
		SubjectID:    row.SubjectID,
		VisitName:    vitals.Visit(row.VisitName),
		TreatmentArm: vitals.Arm(row.TreatmentArm),
	}

	for _, c := range vitals.Columns() {
		v := *row.value(c)
		clamped := vitals.ColumnRange(c).Clamp(v)
		if clamped != v {
			report.Fixes = append(report.Fixes, vitals.RepairFix{
				SubjectID: rec.SubjectID,
				Visit:     rec.VisitName,
				Field:     string(c),
				Operation: "clipped",
				Detail:    fmt.Sprintf("%.1f -> %.1f", v, clamped),
			})
		}
		rec.SetValue(c, clamped)
	}

	if rec.SystolicBP-rec.DiastolicBP < vitals.MinBPDifferential {
		before := fmt.Sprintf("sbp=%d dbp=%d", rec.SystolicBP, rec.DiastolicBP)
		if rec.SystolicBP <= rec.DiastolicBP {
			rec.SystolicBP, rec.DiastolicBP = rec.DiastolicBP, rec.SystolicBP
		}
		if rec.SystolicBP-rec.DiastolicBP < vitals.MinBPDifferential {
			rec.DiastolicBP = rec.SystolicBP - vitals.MinBPDifferential
			if low := vitals.ColumnRange(vitals.ColDiastolicBP).Min; float64(rec.DiastolicBP) < low {
				rec.DiastolicBP = int(low)
			}
		}
		report.Fixes = append(report.Fixes, vitals.RepairFix{
			SubjectID: rec.SubjectID,
			Visit:     rec.VisitName,
			Field:     "bp_differential",
			Operation: "differential_repaired",
			Detail:    fmt.Sprintf("%s -> sbp=%d dbp=%d", before, rec.SystolicBP, rec.DiastolicBP),
		})
	}

	return rec
}

// RepairRecords re-runs repair over typed records, used to verify
// idempotency and to sanitize datasets of unknown provenance.
func RepairRecords(records []vitals.Record) (vitals.ReferenceDataset, error) {
	raw := make([]RawRecord, len(records))
	for i, rec := range records {
		raw[i] = FromRecord(rec)
	}
	return Repair(raw)
}
