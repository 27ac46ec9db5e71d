// Package excel loads caller-provided reference vitals from .xlsx or .csv
// files into raw records for the repairer. This is the caller-side loading
// step; the core itself never does I/O.
package excel

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"vitalsynth/internal/repair"
)

// expectedHeader is the stable column order for vitals files
var expectedHeader = []string{
	"subject_id", "visit_name", "treatment_arm",
	"systolic_bp", "diastolic_bp", "heart_rate", "temperature",
}

// DataReader handles reading Excel and CSV vitals files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewDataReader creates a reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType}
}

// ReadRecords reads raw vitals rows. Blank numeric cells become nil values
// for the repairer to impute; malformed non-numeric content is an error.
func (r *DataReader) ReadRecords() ([]repair.RawRecord, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty file", r.filePath)
	}

	if err := checkHeader(rows[0]); err != nil {
		return nil, err
	}

	records := make([]repair.RawRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", r.filePath, i+2, err)
		}
		records = append(records, rec)
	}

	log.Printf("[DataReader] Read %d vitals rows from %s", len(records), r.filePath)
	return records, nil
}

func (r *DataReader) readCSVRows() ([][]string, error) {
	f, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

func (r *DataReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: no sheets", r.filePath)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func checkHeader(header []string) error {
	if len(header) < len(expectedHeader) {
		return fmt.Errorf("header has %d columns, want %d (%s)",
			len(header), len(expectedHeader), strings.Join(expectedHeader, ","))
	}
	for i, want := range expectedHeader {
		got := strings.ToLower(strings.TrimSpace(header[i]))
		if got != want {
			return fmt.Errorf("header column %d is %q, want %q", i+1, header[i], want)
		}
	}
	return nil
}

func parseRow(row []string) (repair.RawRecord, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	rec := repair.RawRecord{
		SubjectID:    cell(0),
		VisitName:    cell(1),
		TreatmentArm: cell(2),
	}

	numeric := func(i int, field string) (*float64, error) {
		s := cell(i)
		if s == "" {
			return nil, nil // missing, repairer imputes
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: %q is not numeric", field, s)
		}
		return &v, nil
	}

	var err error
	if rec.SystolicBP, err = numeric(3, "systolic_bp"); err != nil {
		return rec, err
	}
	if rec.DiastolicBP, err = numeric(4, "diastolic_bp"); err != nil {
		return rec, err
	}
	if rec.HeartRate, err = numeric(5, "heart_rate"); err != nil {
		return rec, err
	}
	if rec.Temperature, err = numeric(6, "temperature"); err != nil {
		return rec, err
	}
	return rec, nil
}
