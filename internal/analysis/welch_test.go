package analysis

import (
	"errors"
	"math/rand"
	"testing"

	"vitalsynth/domain/vitals"
)

// twoArmCohort builds Week12 records with the given per-arm systolic
// means, normal noise of std 5, and n subjects per arm.
func twoArmCohort(n int, activeMean, placeboMean float64, seed int64) []vitals.Record {
	rng := rand.New(rand.NewSource(seed))
	records := make([]vitals.Record, 0, 2*n)
	emit := func(arm vitals.Arm, mean float64, prefix string) {
		for i := 0; i < n; i++ {
			rec := vitals.Record{
				SubjectID:    prefix,
				VisitName:    vitals.VisitWeek12,
				TreatmentArm: arm,
				DiastolicBP:  80,
				HeartRate:    72,
				Temperature:  36.8,
			}
			rec.SetValue(vitals.ColSystolicBP, mean+rng.NormFloat64()*5)
			records = append(records, rec)
		}
	}
	emit(vitals.ArmActive, activeMean, "A")
	emit(vitals.ArmPlacebo, placeboMean, "P")
	return records
}

func TestWeekNEffect_DetectsTrueDifference(t *testing.T) {
	// 50 per arm with a true -5 mmHg difference: the test should land
	// comfortably below alpha and the CI should exclude zero.
	records := twoArmCohort(50, 125, 130, 1)

	result, err := WeekNEffect(records, vitals.VisitWeek12, vitals.ColSystolicBP)
	if err != nil {
		t.Fatal(err)
	}

	if result.Active.N != 50 || result.Placebo.N != 50 {
		t.Fatalf("arm sizes: %d/%d, want 50/50", result.Active.N, result.Placebo.N)
	}
	if result.Difference > -2 || result.Difference < -8 {
		t.Errorf("difference %.2f not near -5", result.Difference)
	}
	if result.PValue >= 0.05 {
		t.Errorf("p-value %.4f should be significant", result.PValue)
	}
	if !result.Significant {
		t.Error("significant flag should be set")
	}
	if result.CI95Lower >= 0 || result.CI95Upper >= 0 {
		t.Errorf("95%% CI [%.2f, %.2f] should exclude zero", result.CI95Lower, result.CI95Upper)
	}
	if result.CI95Lower >= result.CI95Upper {
		t.Errorf("CI bounds inverted: [%.2f, %.2f]", result.CI95Lower, result.CI95Upper)
	}
}

func TestWeekNEffect_NoDifference(t *testing.T) {
	// Mirror-image arms: every Active value appears in Placebo too, so the
	// mean difference is exactly zero regardless of the noise draw.
	rng := rand.New(rand.NewSource(2))
	var records []vitals.Record
	for i := 0; i < 50; i++ {
		sbp := 128 + rng.NormFloat64()*5
		for _, arm := range vitals.Arms() {
			rec := vitals.Record{SubjectID: "S", VisitName: vitals.VisitWeek12, TreatmentArm: arm,
				DiastolicBP: 80, HeartRate: 72, Temperature: 36.8}
			rec.SetValue(vitals.ColSystolicBP, sbp)
			records = append(records, rec)
		}
	}

	result, err := WeekNEffect(records, vitals.VisitWeek12, vitals.ColSystolicBP)
	if err != nil {
		t.Fatal(err)
	}

	if result.Difference != 0 {
		t.Errorf("mirrored arms must have zero difference, got %.4f", result.Difference)
	}
	if result.PValue < 0.05 {
		t.Errorf("p-value %.4f unexpectedly significant for identical arms", result.PValue)
	}
	if result.Significant {
		t.Error("significant flag should be clear")
	}
	if result.CI95Lower > 0 || result.CI95Upper < 0 {
		t.Errorf("95%% CI [%.2f, %.2f] should contain zero", result.CI95Lower, result.CI95Upper)
	}
}

func TestWeekNEffect_ArmSummaries(t *testing.T) {
	records := []vitals.Record{
		{SubjectID: "A1", VisitName: vitals.VisitWeek12, TreatmentArm: vitals.ArmActive, SystolicBP: 120, DiastolicBP: 80, HeartRate: 70, Temperature: 36.8},
		{SubjectID: "A2", VisitName: vitals.VisitWeek12, TreatmentArm: vitals.ArmActive, SystolicBP: 130, DiastolicBP: 80, HeartRate: 70, Temperature: 36.8},
		{SubjectID: "P1", VisitName: vitals.VisitWeek12, TreatmentArm: vitals.ArmPlacebo, SystolicBP: 125, DiastolicBP: 80, HeartRate: 70, Temperature: 36.8},
		{SubjectID: "P2", VisitName: vitals.VisitWeek12, TreatmentArm: vitals.ArmPlacebo, SystolicBP: 135, DiastolicBP: 80, HeartRate: 70, Temperature: 36.8},
	}

	result, err := WeekNEffect(records, vitals.VisitWeek12, vitals.ColSystolicBP)
	if err != nil {
		t.Fatal(err)
	}

	if result.Active.Mean != 125 {
		t.Errorf("active mean: got %.2f, want 125", result.Active.Mean)
	}
	if result.Placebo.Mean != 130 {
		t.Errorf("placebo mean: got %.2f, want 130", result.Placebo.Mean)
	}
	if result.Difference != -5 {
		t.Errorf("difference: got %.2f, want -5", result.Difference)
	}
	// Sample std of {120,130} is sqrt(50) ~ 7.071.
	if diff := result.Active.Std - 7.0710678; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("active std: got %.6f", result.Active.Std)
	}
}

func TestWeekNEffect_InsufficientData(t *testing.T) {
	records := twoArmCohort(50, 125, 130, 3)

	// Strip the Placebo arm down to one subject.
	var reduced []vitals.Record
	placeboKept := 0
	for _, rec := range records {
		if rec.TreatmentArm == vitals.ArmPlacebo {
			if placeboKept >= 1 {
				continue
			}
			placeboKept++
		}
		reduced = append(reduced, rec)
	}

	_, err := WeekNEffect(reduced, vitals.VisitWeek12, vitals.ColSystolicBP)
	if !errors.Is(err, vitals.ErrInsufficientData) {
		t.Errorf("expected insufficient data error, got %v", err)
	}
}

func TestWeekNEffect_IgnoresOtherVisits(t *testing.T) {
	records := twoArmCohort(10, 125, 130, 4)
	// Records at other visits with wild values must not leak in.
	noise := vitals.Record{SubjectID: "X", VisitName: vitals.VisitScreening, TreatmentArm: vitals.ArmActive, SystolicBP: 200, DiastolicBP: 80, HeartRate: 70, Temperature: 36.8}
	records = append(records, noise)

	result, err := WeekNEffect(records, vitals.VisitWeek12, vitals.ColSystolicBP)
	if err != nil {
		t.Fatal(err)
	}
	if result.Active.N != 10 {
		t.Errorf("screening record leaked into Week12 analysis: n=%d", result.Active.N)
	}
}

func TestWeekNEffect_UnknownVisit(t *testing.T) {
	records := twoArmCohort(5, 125, 130, 5)
	if _, err := WeekNEffect(records, "Week99", vitals.ColSystolicBP); !errors.Is(err, vitals.ErrSchema) {
		t.Errorf("expected schema error, got %v", err)
	}
}
