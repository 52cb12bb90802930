package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Table holds a loaded training set. Rows keep the order they had in the
// source file: closed trades are appended chronologically by the collector,
// so the row index is the temporal order every split in this repo relies on.
type Table struct {
	X [][]float64
	Y []int

	// Sanitized counts feature cells that were NaN or infinite in the
	// source and were replaced with 0.
	Sanitized int
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.X)
}

// Wins returns the number of rows labeled 1.
func (t *Table) Wins() int {
	wins := 0
	for _, y := range t.Y {
		wins += y
	}
	return wins
}

// Load reads a training table from a local CSV file or, when source starts
// with http:// or https://, from the export endpoint of the data collector.
func Load(source string, httpTimeout time.Duration) (*Table, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return fetchCSV(source, httpTimeout)
	}

	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	tbl, err := parseCSV(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", source, err)
	}

	log.Info().
		Str("source", source).
		Int("rows", tbl.Len()).
		Int("sanitized_cells", tbl.Sanitized).
		Msg("Dataset loaded")

	return tbl, nil
}

func fetchCSV(url string, timeout time.Duration) (*Table, error) {
	client := resty.New().SetTimeout(timeout)

	resp, err := client.R().Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dataset: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("dataset fetch returned status %d", resp.StatusCode())
	}

	tbl, err := parseCSV(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", url, err)
	}

	log.Info().
		Str("source", url).
		Int("rows", tbl.Len()).
		Int("sanitized_cells", tbl.Sanitized).
		Msg("Dataset fetched")

	return tbl, nil
}

func parseCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	indices := make(map[string]int)
	for i, col := range header {
		indices[strings.TrimSpace(col)] = i
	}

	var missing []string
	for _, col := range FeatureColumns {
		if _, ok := indices[col]; !ok {
			missing = append(missing, col)
		}
	}
	if _, ok := indices[TargetColumn]; !ok {
		missing = append(missing, TargetColumn)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("dataset is missing required columns: %s", strings.Join(missing, ", "))
	}

	tbl := &Table{}
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", row+1, err)
		}
		row++

		x := make([]float64, NumFeatures)
		for j, col := range FeatureColumns {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[indices[col]]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: column %s: invalid numeric value %q", row, col, record[indices[col]])
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
				tbl.Sanitized++
			}
			x[j] = v
		}

		raw := strings.TrimSpace(record[indices[TargetColumn]])
		label, err := strconv.ParseFloat(raw, 64)
		if err != nil || (label != 0 && label != 1) {
			return nil, fmt.Errorf("row %d: column %s: expected 0 or 1, got %q", row, TargetColumn, raw)
		}

		tbl.X = append(tbl.X, x)
		tbl.Y = append(tbl.Y, int(label))
	}

	if tbl.Len() == 0 {
		return nil, fmt.Errorf("dataset contains no rows")
	}

	return tbl, nil
}
