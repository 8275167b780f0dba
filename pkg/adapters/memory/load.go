package memory

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// TableFile is the JSON/YAML layout of a metric table.
type TableFile struct {
	Items []Item `yaml:"items" json:"items"`
}

// LoadTable reads a metric table from disk. The format follows the extension:
// .json, .csv, or YAML for anything else.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metric table: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f)
	case ".json":
		var file TableFile
		if err := json.NewDecoder(f).Decode(&file); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		return NewTable(file.Items...), nil
	default:
		var file TableFile
		if err := yaml.NewDecoder(f).Decode(&file); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		return NewTable(file.Items...), nil
	}
}

// ReadCSV reads a table whose header is "id", an optional "source", then one column per
// metric. Empty cells mean the item has no value for that metric.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	idCol, sourceCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case "id":
			idCol = i
		case "source":
			sourceCol = i
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("csv header has no %q column", "id")
	}

	t := NewTable()
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		id, err := strconv.Atoi(strings.TrimSpace(rec[idCol]))
		if err != nil {
			return nil, fmt.Errorf("csv line %d: invalid id %q", line, rec[idCol])
		}
		it := Item{ID: id, Metrics: make(map[string]float64)}
		if sourceCol >= 0 {
			it.Source = strings.TrimSpace(rec[sourceCol])
		}
		for i, cell := range rec {
			if i == idCol || i == sourceCol || strings.TrimSpace(cell) == "" {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d: column %q: %w", line, header[i], err)
			}
			it.Metrics[strings.TrimSpace(header[i])] = v
		}
		t.Put(it)
	}
	return t, nil
}
