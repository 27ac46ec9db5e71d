package vitals

// Visit identifies one of the canonical study visits
type Visit string

const (
	VisitScreening Visit = "Screening"
	VisitDay1      Visit = "Day1"
	VisitWeek4     Visit = "Week4"
	VisitWeek12    Visit = "Week12"
)

// Visits returns the canonical visit sequence in study order
func Visits() []Visit {
	return []Visit{VisitScreening, VisitDay1, VisitWeek4, VisitWeek12}
}

// VisitIndex returns the position of a visit in the canonical sequence, or -1
func VisitIndex(v Visit) int {
	for i, visit := range Visits() {
		if visit == v {
			return i
		}
	}
	return -1
}

// ParseVisit validates a visit name string
func ParseVisit(s string) (Visit, error) {
	v := Visit(s)
	if VisitIndex(v) < 0 {
		return "", NewSchemaError("visit_name", "unknown visit %q", s)
	}
	return v, nil
}

// Arm identifies the treatment arm a subject is assigned to
type Arm string

const (
	ArmActive  Arm = "Active"
	ArmPlacebo Arm = "Placebo"
)

// Arms returns both treatment arms in canonical order (Active first)
func Arms() []Arm {
	return []Arm{ArmActive, ArmPlacebo}
}

// ParseArm validates a treatment arm string
func ParseArm(s string) (Arm, error) {
	switch Arm(s) {
	case ArmActive, ArmPlacebo:
		return Arm(s), nil
	}
	return "", NewSchemaError("treatment_arm", "unknown arm %q", s)
}

// Column identifies a numeric vital-sign field
type Column string

const (
	ColSystolicBP  Column = "systolic_bp"
	ColDiastolicBP Column = "diastolic_bp"
	ColHeartRate   Column = "heart_rate"
	ColTemperature Column = "temperature"
)

// Columns returns the numeric columns in stable output order
func Columns() []Column {
	return []Column{ColSystolicBP, ColDiastolicBP, ColHeartRate, ColTemperature}
}

// ParseColumn validates an external column name
func ParseColumn(s string) (Column, error) {
	for _, c := range Columns() {
		if Column(s) == c {
			return c, nil
		}
	}
	return "", NewSchemaError("column", "unknown column %q", s)
}

// Range is a closed interval of clinically valid values for one column
type Range struct {
	Min float64
	Max float64
}

// Clamp clips a value to the range bounds
func (r Range) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Contains reports whether v lies inside the closed interval
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// MinBPDifferential is the clinical floor on SystolicBP - DiastolicBP
const MinBPDifferential = 5

// ColumnRange returns the valid interval for a column
func ColumnRange(c Column) Range {
	switch c {
	case ColSystolicBP:
		return Range{Min: 95, Max: 200}
	case ColDiastolicBP:
		return Range{Min: 55, Max: 130}
	case ColHeartRate:
		return Range{Min: 50, Max: 120}
	case ColTemperature:
		return Range{Min: 35.0, Max: 40.0}
	}
	return Range{}
}

// Record is a single subject-visit vital-signs observation.
// Field order is the stable external serialization order.
type Record struct {
	SubjectID    string  `json:"subject_id"`
	VisitName    Visit   `json:"visit_name"`
	TreatmentArm Arm     `json:"treatment_arm"`
	SystolicBP   int     `json:"systolic_bp"`
	DiastolicBP  int     `json:"diastolic_bp"`
	HeartRate    int     `json:"heart_rate"`
	Temperature  float64 `json:"temperature"`
}

// Value returns the numeric value of a column as float64
func (r Record) Value(c Column) float64 {
	switch c {
	case ColSystolicBP:
		return float64(r.SystolicBP)
	case ColDiastolicBP:
		return float64(r.DiastolicBP)
	case ColHeartRate:
		return float64(r.HeartRate)
	case ColTemperature:
		return r.Temperature
	}
	return 0
}

// SetValue stores a numeric value into a column, rounding to the
// column's native precision (integer for BP/HR, one decimal for temperature)
func (r *Record) SetValue(c Column, v float64) {
	switch c {
	case ColSystolicBP:
		r.SystolicBP = roundInt(v)
	case ColDiastolicBP:
		r.DiastolicBP = roundInt(v)
	case ColHeartRate:
		r.HeartRate = roundInt(v)
	case ColTemperature:
		r.Temperature = roundTenth(v)
	}
}

func roundInt(v float64) int {
	if v < 0 {
		return int(v - 0.5)
	}
	return int(v + 0.5)
}

func roundTenth(v float64) float64 {
	return float64(roundInt(v*10)) / 10
}

// Valid reports whether the record satisfies every range and the
// BP differential invariant
func (r Record) Valid() bool {
	for _, c := range Columns() {
		if !ColumnRange(c).Contains(r.Value(c)) {
			return false
		}
	}
	return r.SystolicBP >= r.DiastolicBP+MinBPDifferential
}

// ReferenceDataset is a repaired baseline dataset plus the repair report
// describing what was fixed to make it usable. Consumers treat it read-only.
type ReferenceDataset struct {
	Records []Record     `json:"records"`
	Report  RepairReport `json:"report"`
}

// RepairFix is one audit entry describing a repair applied to the raw data
type RepairFix struct {
	SubjectID string `json:"subject_id"`
	Visit     Visit  `json:"visit,omitempty"`
	Field     string `json:"field,omitempty"`
	Operation string `json:"operation"`
	Detail    string `json:"detail"`
}

// RepairReport summarizes what the repairer found and fixed
type RepairReport struct {
	RowsIn     int         `json:"rows_in"`
	RowsOut    int         `json:"rows_out"`
	Duplicates int         `json:"duplicates_removed"`
	Fixes      []RepairFix `json:"fixes,omitempty"`
}

// Clean reports whether repair found nothing to change
func (r RepairReport) Clean() bool {
	return r.Duplicates == 0 && len(r.Fixes) == 0
}
