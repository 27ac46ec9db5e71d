package generate

import (
	"os"
	"path/filepath"
	"testing"

	"vitalsynth/domain/vitals"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRuleTable_PartialFileFillsDefaults(t *testing.T) {
	path := writeRules(t, `
Week12:
  Active:
    systolic_bp:
      mean: 118
      std: 10
`)

	table, err := LoadRuleTable(path)
	if err != nil {
		t.Fatal(err)
	}

	got := table[vitals.VisitWeek12][vitals.ArmActive][vitals.ColSystolicBP]
	if got.Mean != 118 || got.Std != 10 {
		t.Errorf("override not applied: %+v", got)
	}

	// Everything not mentioned keeps the default.
	def := DefaultRuleTable()
	if table[vitals.VisitScreening][vitals.ArmPlacebo][vitals.ColHeartRate] !=
		def[vitals.VisitScreening][vitals.ArmPlacebo][vitals.ColHeartRate] {
		t.Error("untouched entries should match defaults")
	}
	if table[vitals.VisitWeek12][vitals.ArmPlacebo][vitals.ColSystolicBP] !=
		def[vitals.VisitWeek12][vitals.ArmPlacebo][vitals.ColSystolicBP] {
		t.Error("placebo arm should be untouched by an Active-only override")
	}
}

func TestLoadRuleTable_RejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"unknown visit":  "Week99:\n  Active:\n    systolic_bp: {mean: 120, std: 10}\n",
		"unknown arm":    "Week12:\n  Control:\n    systolic_bp: {mean: 120, std: 10}\n",
		"unknown column": "Week12:\n  Active:\n    pulse_ox: {mean: 97, std: 1}\n",
		"negative std":   "Week12:\n  Active:\n    systolic_bp: {mean: 120, std: -1}\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadRuleTable(writeRules(t, content)); err == nil {
				t.Error("expected load failure")
			}
		})
	}
}

func TestDefaultRuleTable_CoversEveryCell(t *testing.T) {
	table := DefaultRuleTable()
	for _, visit := range vitals.Visits() {
		for _, arm := range vitals.Arms() {
			for _, c := range vitals.Columns() {
				d, ok := table[visit][arm][c]
				if !ok {
					t.Fatalf("missing entry %s/%s/%s", visit, arm, c)
				}
				if d.Std <= 0 {
					t.Errorf("non-positive std at %s/%s/%s", visit, arm, c)
				}
				if !vitals.ColumnRange(c).Contains(d.Mean) {
					t.Errorf("mean outside valid range at %s/%s/%s: %g", visit, arm, c, d.Mean)
				}
			}
		}
	}
}
