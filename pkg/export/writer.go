package export

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"flickrgeo/pkg/logger"
)

// Writer persists extraction results as CSV under a single output
// directory. Each grid cell writes its own part file so an interrupted run
// loses at most one cell; Merge combines the parts into the final export.
type Writer struct {
	dir       string
	overwrite bool
	logger    logger.Logger
}

// NewWriter creates the output directory if needed and returns a writer
func NewWriter(dir string, overwrite bool, log logger.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Writer{dir: dir, overwrite: overwrite, logger: log}, nil
}

// Dir returns the output directory
func (w *Writer) Dir() string {
	return w.dir
}

// PartPath returns the path of a cell's part file
func (w *Writer) PartPath(runName string, cell int) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s.cell_%04d.csv", runName, cell))
}

// FinalPath returns the path of the merged export
func (w *Writer) FinalPath(runName string) string {
	return filepath.Join(w.dir, runName+".csv")
}

// WritePart writes one cell's records to its part file. The write is
// atomic: a temporary file is renamed into place so a crash never leaves a
// half-written part.
func (w *Writer) WritePart(runName string, cell int, records []Record) error {
	path := w.PartPath(runName, cell)
	if err := w.writeCSV(path, records); err != nil {
		return err
	}

	w.logger.DebugWithFields("part file written", map[string]interface{}{
		"path":    path,
		"cell":    cell,
		"records": len(records),
	})
	return nil
}

// ListParts returns the existing part files of a run, sorted by name
func (w *Writer) ListParts(runName string) ([]string, error) {
	pattern := filepath.Join(w.dir, runName+".cell_*.csv")
	parts, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list part files: %w", err)
	}
	sort.Strings(parts)
	return parts, nil
}

// Merge combines all part files of a run into the final CSV, deduplicated
// by record ID and sorted by capture time. Returns the final path and the
// number of records written.
func (w *Writer) Merge(runName string) (string, int, error) {
	final := w.FinalPath(runName)
	if !w.overwrite {
		if _, err := os.Stat(final); err == nil {
			return "", 0, fmt.Errorf("output file already exists: %s", final)
		}
	}

	parts, err := w.ListParts(runName)
	if err != nil {
		return "", 0, err
	}
	if len(parts) == 0 {
		return "", 0, fmt.Errorf("no part files found for run %q", runName)
	}

	seen := make(map[string]struct{})
	var records []Record
	for _, part := range parts {
		partRecords, err := readRecords(part)
		if err != nil {
			return "", 0, fmt.Errorf("failed to read part %s: %w", part, err)
		}
		for _, r := range partRecords {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			records = append(records, r)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].DateTaken.Equal(records[j].DateTaken) {
			return records[i].ID < records[j].ID
		}
		return records[i].DateTaken.Before(records[j].DateTaken)
	})

	if err := w.writeCSV(final, records); err != nil {
		return "", 0, err
	}

	w.logger.InfoWithFields("export merged", map[string]interface{}{
		"path":    final,
		"parts":   len(parts),
		"records": len(records),
	})
	return final, len(records), nil
}

// RemoveParts deletes a run's part files, typically after a merge
func (w *Writer) RemoveParts(runName string) error {
	parts, err := w.ListParts(runName)
	if err != nil {
		return err
	}
	for _, part := range parts {
		if err := os.Remove(part); err != nil {
			return fmt.Errorf("failed to remove part %s: %w", part, err)
		}
	}
	return nil
}

// Zip compresses the final CSV into <run>.zip next to it and removes the
// CSV on success
func (w *Writer) Zip(runName string) (string, error) {
	csvPath := w.FinalPath(runName)
	zipPath := filepath.Join(w.dir, runName+".zip")

	src, err := os.Open(csvPath)
	if err != nil {
		return "", fmt.Errorf("failed to open export: %w", err)
	}
	defer src.Close()

	tmpPath := zipPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	zw := zip.NewWriter(out)
	entry, err := zw.Create(filepath.Base(csvPath))
	if err == nil {
		_, err = io.Copy(entry, src)
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write archive: %w", err)
	}

	if err := os.Rename(tmpPath, zipPath); err != nil {
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := os.Remove(csvPath); err != nil {
		return "", fmt.Errorf("failed to remove csv after zipping: %w", err)
	}

	w.logger.InfoWithFields("export zipped", map[string]interface{}{
		"path": zipPath,
	})
	return zipPath, nil
}

// writeCSV writes records atomically via a temporary file
func (w *Writer) writeCSV(path string, records []Record) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	cw := csv.NewWriter(f)
	err = cw.Write(Header())
	for _, r := range records {
		if err != nil {
			break
		}
		err = cw.Write(r.Row())
	}
	if err == nil {
		cw.Flush()
		err = cw.Error()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write csv: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// readRecords parses a part file written by writeCSV
func readRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// Skip header
	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		r, err := parseRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}
