package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/refinery-cli/internal/model"
)

// ReadCSV reads a CSV file into a record batch. The first row is the
// header; empty cells become nulls. Every record is stamped with the
// source file name and a shared ingestion timestamp.
func ReadCSV(path string) ([]model.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open csv")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv header")
	}
	cols := NormalizeHeader(header)

	now := time.Now().UTC()
	var out []model.Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read csv row")
		}
		out = append(out, rowToRecord(cols, row, path, now))
	}
	return out, nil
}

// rowToRecord maps one row onto the normalized columns. Short rows leave
// trailing columns null; extra cells beyond the header are dropped.
func rowToRecord(cols, row []string, path string, ingestedAt time.Time) model.Record {
	rec := model.Record{}
	for i, col := range cols {
		if col == "" {
			continue
		}
		if i >= len(row) || row[i] == "" {
			rec[col] = nil
			continue
		}
		rec[col] = row[i]
	}
	rec[model.ColIngestedFile] = filepath.Base(path)
	rec[model.ColIngestionTS] = ingestedAt
	return rec
}
