// Package calibrate fits growth law parameters to measured organ lengths.
//
// Input is a Table of lengths per (time, subject). Three policies minimize
// the squared residuals between the negative exponential growth law and the
// observations: the rate alone from the earliest timepoint, the rate alone
// from all timepoints, and rate and maximal length jointly.
package calibrate

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Table holds lengths indexed [time][subject]. NaN marks a subject not
// measured at that time.
type Table struct {
	Times    []float64
	Subjects []string
	Lengths  [][]float64
}

// NewTable returns a table of the given shape with every cell unmeasured.
func NewTable(times []float64, subjects []string) *Table {
	t := &Table{
		Times:    append([]float64(nil), times...),
		Subjects: append([]string(nil), subjects...),
		Lengths:  make([][]float64, len(times)),
	}
	for i := range t.Lengths {
		row := make([]float64, len(subjects))
		for j := range row {
			row[j] = math.NaN()
		}
		t.Lengths[i] = row
	}
	return t
}

// Validate checks the shape, ascending times and non-negative lengths.
func (t *Table) Validate() error {
	if len(t.Lengths) != len(t.Times) {
		return fmt.Errorf("%w: %d times but %d rows", ErrInvalidTable, len(t.Times), len(t.Lengths))
	}
	if !sort.Float64sAreSorted(t.Times) {
		return fmt.Errorf("%w: times must be ascending", ErrInvalidTable)
	}
	for i, row := range t.Lengths {
		if len(row) != len(t.Subjects) {
			return fmt.Errorf("%w: row %d has %d cells for %d subjects", ErrInvalidTable, i, len(row), len(t.Subjects))
		}
		for j, v := range row {
			if v < 0 || math.IsInf(v, 0) {
				return fmt.Errorf("%w: length %g of %s at t=%g", ErrInvalidTable, v, t.Subjects[j], t.Times[i])
			}
		}
	}
	return nil
}

// Observations flattens the measured cells of the first nTimes rows into
// parallel time and length slices. nTimes <= 0 means all rows.
func (t *Table) Observations(nTimes int) (times, lengths []float64) {
	if nTimes <= 0 || nTimes > len(t.Times) {
		nTimes = len(t.Times)
	}
	for i := 0; i < nTimes; i++ {
		for _, v := range t.Lengths[i] {
			if math.IsNaN(v) {
				continue
			}
			times = append(times, t.Times[i])
			lengths = append(lengths, v)
		}
	}
	return times, lengths
}

// FirstMeasuredRow returns the index of the earliest row with at least one
// measurement, -1 for an empty table.
func (t *Table) FirstMeasuredRow() int {
	for i, row := range t.Lengths {
		for _, v := range row {
			if !math.IsNaN(v) {
				return i
			}
		}
	}
	return -1
}

// ReadTableCSV parses a table from CSV with header "time,<subject>,...".
// Empty cells and "NaN" are unmeasured.
func ReadTableCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading observations: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidTable)
	}
	header := records[0]
	if len(header) < 2 || strings.TrimSpace(header[0]) != "time" {
		return nil, fmt.Errorf("%w: header must start with \"time\" followed by subjects", ErrInvalidTable)
	}
	times := make([]float64, 0, len(records)-1)
	for _, rec := range records[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: time %q: %v", ErrInvalidTable, rec[0], err)
		}
		times = append(times, v)
	}
	t := NewTable(times, header[1:])
	for i, rec := range records[1:] {
		for j, cell := range rec[1:] {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d, %s: %v", ErrInvalidTable, i+1, t.Subjects[j], err)
			}
			t.Lengths[i][j] = v
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// WriteCSV writes the table in the layout read by ReadTableCSV.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"time"}, t.Subjects...)); err != nil {
		return err
	}
	for i, row := range t.Lengths {
		rec := make([]string, 0, len(row)+1)
		rec = append(rec, strconv.FormatFloat(t.Times[i], 'g', -1, 64))
		for _, v := range row {
			if math.IsNaN(v) {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadTable reads a CSV observation file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading observations: %w", err)
	}
	return ReadTableCSV(bytes.NewReader(data))
}
