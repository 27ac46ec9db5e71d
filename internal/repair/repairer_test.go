package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalsynth/domain/vitals"
)

func ptr(v float64) *float64 { return &v }

func rawRecord(subject, visit, arm string) RawRecord {
	return RawRecord{
		SubjectID:    subject,
		VisitName:    visit,
		TreatmentArm: arm,
		SystolicBP:   ptr(125),
		DiastolicBP:  ptr(80),
		HeartRate:    ptr(72),
		Temperature:  ptr(36.8),
	}
}

func cleanCohort() []RawRecord {
	var raw []RawRecord
	for _, subject := range []string{"S-001", "S-002", "S-003"} {
		for _, visit := range vitals.Visits() {
			raw = append(raw, rawRecord(subject, string(visit), "Active"))
		}
	}
	return raw
}

func TestRepair_CleanInputProducesEmptyReport(t *testing.T) {
	ds, err := Repair(cleanCohort())
	require.NoError(t, err)

	assert.True(t, ds.Report.Clean(), "clean input should need no fixes: %+v", ds.Report.Fixes)
	assert.Equal(t, 12, ds.Report.RowsIn)
	assert.Equal(t, 12, ds.Report.RowsOut)
}

func TestRepair_DuplicateAndOutOfRange(t *testing.T) {
	raw := cleanCohort()
	// One duplicated (subject, visit) pair and one systolic of 300.
	raw = append(raw, raw[0])
	raw[1].SystolicBP = ptr(300)

	ds, err := Repair(raw)
	require.NoError(t, err)

	assert.Equal(t, 1, ds.Report.Duplicates)
	assert.Len(t, ds.Report.Fixes, 2, "expected exactly the duplicate and the clip")

	seen := make(map[string]bool)
	for _, rec := range ds.Records {
		key := rec.SubjectID + "|" + string(rec.VisitName)
		assert.False(t, seen[key], "duplicate survived repair: %s", key)
		seen[key] = true
		assert.LessOrEqual(t, rec.SystolicBP, 200)
	}
}

func TestRepair_SwapsInvertedBP(t *testing.T) {
	raw := cleanCohort()
	raw[0].SystolicBP = ptr(100)
	raw[0].DiastolicBP = ptr(120)

	ds, err := Repair(raw)
	require.NoError(t, err)

	assert.Equal(t, 120, ds.Records[0].SystolicBP)
	assert.Equal(t, 100, ds.Records[0].DiastolicBP)
}

func TestRepair_WidensNarrowDifferential(t *testing.T) {
	raw := cleanCohort()
	raw[0].SystolicBP = ptr(110)
	raw[0].DiastolicBP = ptr(108)

	ds, err := Repair(raw)
	require.NoError(t, err)

	rec := ds.Records[0]
	assert.GreaterOrEqual(t, rec.SystolicBP-rec.DiastolicBP, vitals.MinBPDifferential)
	assert.Equal(t, 105, rec.DiastolicBP)
}

func TestRepair_ReconcilesInconsistentArm(t *testing.T) {
	raw := cleanCohort()
	// S-001 has 4 Active visits; flip one to Placebo.
	raw[2].TreatmentArm = "Placebo"

	ds, err := Repair(raw)
	require.NoError(t, err)

	for _, rec := range ds.Records {
		if rec.SubjectID == "S-001" {
			assert.Equal(t, vitals.ArmActive, rec.TreatmentArm)
		}
	}

	fixed := false
	for _, fix := range ds.Report.Fixes {
		if fix.Operation == "arm_reconciled" {
			fixed = true
		}
	}
	assert.True(t, fixed, "expected an arm_reconciled fix in the report")
}

func TestRepair_ImputesFromSubjectThenCohort(t *testing.T) {
	raw := cleanCohort()
	// S-001 heart rates: 60 at three visits, missing at one.
	for i := 0; i < 3; i++ {
		raw[i].HeartRate = ptr(60)
	}
	raw[3].HeartRate = nil
	// S-002 has no temperature at all; cohort median must serve.
	for i := 4; i < 8; i++ {
		raw[i].Temperature = nil
	}

	ds, err := Repair(raw)
	require.NoError(t, err)

	assert.Equal(t, 60, ds.Records[3].HeartRate, "subject median should win over cohort")
	for i := 4; i < 8; i++ {
		assert.InDelta(t, 36.8, ds.Records[i].Temperature, 0.01, "cohort median imputation")
	}
}

func TestRepair_Idempotent(t *testing.T) {
	raw := cleanCohort()
	raw = append(raw, raw[0])
	raw[1].SystolicBP = ptr(300)
	raw[2].TreatmentArm = "Placebo"
	raw[3].HeartRate = nil
	raw[5].SystolicBP = ptr(90)
	raw[5].DiastolicBP = ptr(100)

	first, err := Repair(raw)
	require.NoError(t, err)

	second, err := RepairRecords(first.Records)
	require.NoError(t, err)

	assert.True(t, second.Report.Clean(), "second pass should find nothing: %+v", second.Report.Fixes)
	assert.Equal(t, first.Records, second.Records)
}

func TestRepair_SchemaErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*RawRecord)
	}{
		{"missing subject", func(r *RawRecord) { r.SubjectID = "" }},
		{"missing visit", func(r *RawRecord) { r.VisitName = "" }},
		{"unknown visit", func(r *RawRecord) { r.VisitName = "Week99" }},
		{"missing arm", func(r *RawRecord) { r.TreatmentArm = "" }},
		{"unknown arm", func(r *RawRecord) { r.TreatmentArm = "Control" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := cleanCohort()
			tc.mutate(&raw[0])

			_, err := Repair(raw)
			require.Error(t, err)
			assert.True(t, vitals.IsSchemaError(err), "expected schema error, got %v", err)
		})
	}
}
