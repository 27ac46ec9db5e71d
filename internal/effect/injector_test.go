package effect

import (
	"testing"

	"vitalsynth/domain/vitals"
)

func subjectVisits(subject string, arm vitals.Arm, sbp int) []vitals.Record {
	records := make([]vitals.Record, 0, len(vitals.Visits()))
	for _, visit := range vitals.Visits() {
		records = append(records, vitals.Record{
			SubjectID:    subject,
			VisitName:    visit,
			TreatmentArm: arm,
			SystolicBP:   sbp,
			DiastolicBP:  80,
			HeartRate:    72,
			Temperature:  36.8,
		})
	}
	return records
}

func findVisit(t *testing.T, records []vitals.Record, subject string, visit vitals.Visit) vitals.Record {
	t.Helper()
	for _, rec := range records {
		if rec.SubjectID == subject && rec.VisitName == visit {
			return rec
		}
	}
	t.Fatalf("no record for %s at %s", subject, visit)
	return vitals.Record{}
}

func TestInject_FullEffectAtEndpoint(t *testing.T) {
	records := append(subjectVisits("A-001", vitals.ArmActive, 130),
		subjectVisits("P-001", vitals.ArmPlacebo, 130)...)

	out, err := Inject(records, DefaultConfig(-10))
	if err != nil {
		t.Fatal(err)
	}

	if got := findVisit(t, out, "A-001", vitals.VisitWeek12).SystolicBP; got != 120 {
		t.Errorf("Active Week12: got %d, want 120", got)
	}
	if got := findVisit(t, out, "P-001", vitals.VisitWeek12).SystolicBP; got != 130 {
		t.Errorf("Placebo Week12 must be untouched: got %d", got)
	}
}

func TestInject_LinearOnset(t *testing.T) {
	records := subjectVisits("A-001", vitals.ArmActive, 130)

	out, err := Inject(records, DefaultConfig(-9))
	if err != nil {
		t.Fatal(err)
	}

	// Endpoint index 3: fractions 0/3, 1/3, 2/3, 3/3.
	want := map[vitals.Visit]int{
		vitals.VisitScreening: 130,
		vitals.VisitDay1:      127,
		vitals.VisitWeek4:     124,
		vitals.VisitWeek12:    121,
	}
	for visit, sbp := range want {
		if got := findVisit(t, out, "A-001", visit).SystolicBP; got != sbp {
			t.Errorf("%s: got %d, want %d", visit, got, sbp)
		}
	}
}

func TestInject_StepOnset(t *testing.T) {
	records := subjectVisits("A-001", vitals.ArmActive, 130)

	cfg := DefaultConfig(-10)
	cfg.Onset = OnsetStep
	out, err := Inject(records, cfg)
	if err != nil {
		t.Fatal(err)
	}

	for _, visit := range []vitals.Visit{vitals.VisitScreening, vitals.VisitDay1, vitals.VisitWeek4} {
		if got := findVisit(t, out, "A-001", visit).SystolicBP; got != 130 {
			t.Errorf("%s: step onset should not shift pre-endpoint visits, got %d", visit, got)
		}
	}
	if got := findVisit(t, out, "A-001", vitals.VisitWeek12).SystolicBP; got != 120 {
		t.Errorf("Week12: got %d, want 120", got)
	}
}

func TestInject_DoesNotMutateInput(t *testing.T) {
	records := subjectVisits("A-001", vitals.ArmActive, 130)

	if _, err := Inject(records, DefaultConfig(-10)); err != nil {
		t.Fatal(err)
	}

	for _, rec := range records {
		if rec.SystolicBP != 130 {
			t.Fatalf("input mutated: %+v", rec)
		}
	}
}

func TestInject_ReenforcesConstraints(t *testing.T) {
	// A large negative shift drives SBP below its floor and under the
	// differential margin; the post-shift enforcement pass must repair it.
	records := subjectVisits("A-001", vitals.ArmActive, 100)

	out, err := Inject(records, DefaultConfig(-40))
	if err != nil {
		t.Fatal(err)
	}

	for _, rec := range out {
		if !rec.Valid() {
			t.Errorf("invalid record after injection: %+v", rec)
		}
	}
}

func TestInject_UnknownEndpointVisit(t *testing.T) {
	records := subjectVisits("A-001", vitals.ArmActive, 130)

	cfg := DefaultConfig(-5)
	cfg.EndpointVisit = "Week99"
	if _, err := Inject(records, cfg); err == nil {
		t.Error("expected schema error for unknown endpoint visit")
	}
}
