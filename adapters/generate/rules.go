package generate

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"vitalsynth/domain/vitals"
	"vitalsynth/internal/constraint"
)

// Dist is a hand-specified normal distribution for one field
type Dist struct {
	Mean float64 `yaml:"mean" json:"mean"`
	Std  float64 `yaml:"std" json:"std"`
}

// RuleTable maps visit -> arm -> column to its specified distribution.
// It is the entire parameterization of the rule-based strategy: no
// inter-field correlation is learned from data.
type RuleTable map[vitals.Visit]map[vitals.Arm]map[vitals.Column]Dist

// DefaultRuleTable returns the built-in clinical distribution table.
// Values approximate a mildly hypertensive adult trial population; both
// arms share parameters, the treatment signal comes from effect injection.
func DefaultRuleTable() RuleTable {
	perVisit := map[vitals.Visit]map[vitals.Column]Dist{
		vitals.VisitScreening: {
			vitals.ColSystolicBP:  {Mean: 130, Std: 12},
			vitals.ColDiastolicBP: {Mean: 80, Std: 8},
			vitals.ColHeartRate:   {Mean: 72, Std: 9},
			vitals.ColTemperature: {Mean: 36.8, Std: 0.3},
		},
		vitals.VisitDay1: {
			vitals.ColSystolicBP:  {Mean: 129, Std: 12},
			vitals.ColDiastolicBP: {Mean: 80, Std: 8},
			vitals.ColHeartRate:   {Mean: 73, Std: 9},
			vitals.ColTemperature: {Mean: 36.8, Std: 0.3},
		},
		vitals.VisitWeek4: {
			vitals.ColSystolicBP:  {Mean: 128, Std: 12},
			vitals.ColDiastolicBP: {Mean: 79, Std: 8},
			vitals.ColHeartRate:   {Mean: 72, Std: 9},
			vitals.ColTemperature: {Mean: 36.7, Std: 0.3},
		},
		vitals.VisitWeek12: {
			vitals.ColSystolicBP:  {Mean: 127, Std: 12},
			vitals.ColDiastolicBP: {Mean: 79, Std: 8},
			vitals.ColHeartRate:   {Mean: 71, Std: 9},
			vitals.ColTemperature: {Mean: 36.7, Std: 0.3},
		},
	}

	table := make(RuleTable, len(perVisit))
	for visit, cols := range perVisit {
		table[visit] = make(map[vitals.Arm]map[vitals.Column]Dist, len(vitals.Arms()))
		for _, arm := range vitals.Arms() {
			armCols := make(map[vitals.Column]Dist, len(cols))
			for c, d := range cols {
				armCols[c] = d
			}
			table[visit][arm] = armCols
		}
	}
	return table
}

// LoadRuleTable reads a distribution table from a YAML file, filling any
// visit/arm/column the file omits from the defaults.
func LoadRuleTable(path string) (RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule table: %w", err)
	}

	var loaded RuleTable
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse rule table %s: %w", path, err)
	}

	table := DefaultRuleTable()
	for visit, arms := range loaded {
		if vitals.VisitIndex(visit) < 0 {
			return nil, vitals.NewSchemaError("rule_table", "unknown visit %q", visit)
		}
		for arm, cols := range arms {
			if _, err := vitals.ParseArm(string(arm)); err != nil {
				return nil, err
			}
			for c, d := range cols {
				if !knownColumn(c) {
					return nil, vitals.NewSchemaError("rule_table", "unknown column %q", c)
				}
				if d.Std < 0 {
					return nil, vitals.NewSchemaError("rule_table", "negative std for %s/%s/%s", visit, arm, c)
				}
				table[visit][arm][c] = d
			}
		}
	}
	return table, nil
}

func knownColumn(c vitals.Column) bool {
	for _, known := range vitals.Columns() {
		if c == known {
			return true
		}
	}
	return false
}

// RulesGenerator draws each field independently from the hand-specified
// distribution table. Fastest and lowest-fidelity strategy; it is the
// fallback when no sufficient reference data exists, so it never touches
// the reference dataset.
type RulesGenerator struct {
	table RuleTable
}

// NewRulesGenerator creates the rules strategy with the given table;
// a nil table means the built-in defaults.
func NewRulesGenerator(table RuleTable) *RulesGenerator {
	if table == nil {
		table = DefaultRuleTable()
	}
	return &RulesGenerator{table: table}
}

// Name returns the method this strategy serves
func (g *RulesGenerator) Name() vitals.Method {
	return vitals.MethodRules
}

// Generate draws independent per-field samples for every subject visit
func (g *RulesGenerator) Generate(ctx context.Context, req vitals.GenerationRequest, ref vitals.ReferenceDataset) ([]vitals.Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rng := newRand(req)
	cols := vitals.Columns()
	records := make([]vitals.Record, 0, req.ExpectedCount())
	for armIdx, arm := range vitals.Arms() {
		for i := 0; i < req.NPerArm; i++ {
			id := subjectID(armIdx*req.NPerArm + i + 1)
			for _, visit := range vitals.Visits() {
				rec := vitals.Record{SubjectID: id, VisitName: visit, TreatmentArm: arm}
				for _, c := range cols {
					d := g.table[visit][arm][c]
					if m, ok := req.Override(c, "mean"); ok {
						d.Mean = m
					}
					if s, ok := req.Override(c, "std"); ok {
						d.Std = s
					}
					rec.SetValue(c, d.Mean+rng.NormFloat64()*d.Std)
				}
				records = append(records, rec)
			}
		}
	}

	records = constraint.Enforce(records)
	if err := constraint.Audit(records); err != nil {
		return nil, err
	}
	return records, nil
}
