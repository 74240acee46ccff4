// Package report renders the tracking records of a run as CSV and JSON files.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/projectdiscovery/pd-discovery/pkg/tracking"
	fileutil "github.com/projectdiscovery/utils/file"
)

// FileLayout is the timestamp layout of report file names
const FileLayout = "2006-01-02-1504"

// Header is the first CSV row
var Header = []string{"ip range", "net_class", "uphost_count", "responsive"}

// Report is everything written for one run
type Report struct {
	RunID   string                    `json:"run_id"`
	Started time.Time                 `json:"started"`
	Elapsed Duration                  `json:"elapsed"`
	Failed  []string                  `json:"failed,omitempty"`
	Records []tracking.RecordSnapshot `json:"records"`
}

// Duration marshals as a Go duration string such as "1m30s"
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).Round(time.Millisecond).String()), nil
}

// BaseName returns the report file name without extension
func BaseName(started time.Time) string {
	return "discovery-outfile-run-on-" + started.Format(FileLayout)
}

// WriteCSV writes one row per record
func WriteCSV(w io.Writer, records []tracking.RecordSnapshot) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}

	for _, record := range records {
		responsive, err := responsiveJSON(record.Responsive)
		if err != nil {
			return fmt.Errorf("could not encode %s: %w", record.Range, err)
		}
		row := []string{
			record.Range,
			record.Class.String(),
			strconv.Itoa(record.UpHostCount),
			responsive,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteJSON writes the report as an indented JSON document
func WriteJSON(w io.Writer, report Report) error {
	if report.Records == nil {
		report.Records = []tracking.RecordSnapshot{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func responsiveJSON(responsive map[string][]string) (string, error) {
	if responsive == nil {
		responsive = map[string][]string{}
	}
	// map keys are emitted sorted
	data, err := json.Marshal(responsive)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Writer places report files under a directory
type Writer struct {
	Dir  string
	JSON bool
}

// Write creates the report files and returns their paths
func (w *Writer) Write(report Report) ([]string, error) {
	if err := fileutil.CreateFolder(w.Dir); err != nil {
		return nil, fmt.Errorf("could not create output directory %s: %w", w.Dir, err)
	}

	base := filepath.Join(w.Dir, BaseName(report.Started))
	var paths []string

	csvPath := base + ".csv"
	if err := writeFile(csvPath, func(f io.Writer) error {
		return WriteCSV(f, report.Records)
	}); err != nil {
		return paths, err
	}
	paths = append(paths, csvPath)

	if w.JSON {
		jsonPath := base + ".json"
		if err := writeFile(jsonPath, func(f io.Writer) error {
			return WriteJSON(f, report)
		}); err != nil {
			return paths, err
		}
		paths = append(paths, jsonPath)
	}
	return paths, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", path, err)
	}
	if err := fn(file); err != nil {
		_ = file.Close()
		return fmt.Errorf("could not write %s: %w", path, err)
	}
	return file.Close()
}
