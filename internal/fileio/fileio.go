// Package fileio reads and writes document batches as files. Sources
// are csv, json (array of objects) or jsonl files, addressed either by
// a literal path or by a doublestar glob pattern; targets are written
// atomically through a temp file in the same directory.
package fileio

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cast"

	"github.com/cleansweep/engine/internal/errhandling"
	"github.com/cleansweep/engine/internal/logger"
	"github.com/cleansweep/engine/pkg/curation"
)

// Supported batch file formats.
const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// maxLineBytes caps a single jsonl line. Curated documents can carry
// whole page bodies in one cell, so the scanner default of 64KB is far
// too small.
const maxLineBytes = 16 * 1024 * 1024

// Error types for batch file I/O
var (
	ErrUnknownFormat = errors.New("unknown batch file format")
	ErrNoSourceFiles = errors.New("no files match the source pattern")
)

// DetectFormat returns the batch format implied by the path's
// extension, or "" when the extension maps to no known format. The
// ndjson extension is read as jsonl.
func DetectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	case ".jsonl", ".ndjson":
		return FormatJSONL
	default:
		return ""
	}
}

// ResolveFormat returns the format to use for path: the explicit
// override when given, otherwise the format detected from the
// extension. Unknown overrides and undetectable extensions are errors.
func ResolveFormat(path, override string) (string, error) {
	if override != "" {
		format := strings.ToLower(override)
		switch format {
		case FormatCSV, FormatJSON, FormatJSONL:
			return format, nil
		case "ndjson":
			return FormatJSONL, nil
		default:
			return "", fmt.Errorf("%w: %q", ErrUnknownFormat, override)
		}
	}
	format := DetectFormat(path)
	if format == "" {
		return "", fmt.Errorf("%w: cannot detect a format from %q, set the format explicitly", ErrUnknownFormat, path)
	}
	return format, nil
}

// extensionFor maps a format to its canonical file extension.
func extensionFor(format string) (string, error) {
	switch format {
	case FormatCSV:
		return ".csv", nil
	case FormatJSON:
		return ".json", nil
	case FormatJSONL:
		return ".jsonl", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ExpandGlob resolves a source path or doublestar pattern
// ("data/**/*.jsonl") to concrete files. Matches come back sorted so
// multi-file reads are deterministic. A path without glob metacharacters
// is returned as is after an existence check; a pattern matching no
// regular file is an error.
func ExpandGlob(pattern string) ([]string, error) {
	if err := ValidateFilePath(pattern); err != nil {
		return nil, errhandling.NewIOError("invalid source path", err)
	}

	if !strings.ContainsAny(pattern, "*?[{") {
		if _, err := os.Stat(pattern); err != nil {
			return nil, errhandling.NewIOError(fmt.Sprintf("cannot read source file %q", pattern), err)
		}
		return []string{pattern}, nil
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, errhandling.NewIOError(fmt.Sprintf("invalid source pattern %q", pattern), err)
	}

	files := make([]string, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, match)
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, errhandling.NewIOError(fmt.Sprintf("pattern %q matched no files", pattern), ErrNoSourceFiles)
	}
	return files, nil
}

// ReadBatch reads a single file in the given format into a batch.
func ReadBatch(path, format string) (*curation.Batch, error) {
	var (
		b   *curation.Batch
		err error
	)
	switch format {
	case FormatCSV:
		b, err = readCSV(path)
	case FormatJSON:
		b, err = readJSON(path)
	case FormatJSONL:
		b, err = readJSONL(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("batch read", "path", path, "format", format, "documents", b.Len())
	return b, nil
}

// ReadSource expands the source pattern and reads every matched file
// into one batch, concatenated in sorted path order. It returns the
// batch together with the matched paths.
func ReadSource(pattern, format string) (*curation.Batch, []string, error) {
	files, err := ExpandGlob(pattern)
	if err != nil {
		return nil, nil, err
	}

	var combined *curation.Batch
	for _, path := range files {
		b, err := ReadBatch(path, format)
		if err != nil {
			return nil, nil, err
		}
		if combined == nil {
			combined = b
		} else {
			combined = combined.Concat(b)
		}
	}
	return combined, files, nil
}

// WriteBatch writes the batch to path in the given format. The write
// goes through a temp file in the target directory and an atomic
// rename, so readers never observe a partially written target.
func WriteBatch(b *curation.Batch, path, format string) error {
	if err := ValidateFilePath(path); err != nil {
		return errhandling.NewIOError("invalid target path", err)
	}

	data, err := encodeBatch(b, format)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errhandling.NewIOError(fmt.Sprintf("cannot create target directory %q", dir), err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return errhandling.NewIOError(fmt.Sprintf("cannot write target file %q", tempPath), err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return errhandling.NewIOError(fmt.Sprintf("cannot finalize target file %q", path), err)
	}

	logger.Debug("batch written", "path", path, "format", format, "documents", b.Len())
	return nil
}

// readCSV reads a csv file whose first row names the columns. Cells
// are strings; an empty cell is the empty string, not nil.
func readCSV(path string) (*curation.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errhandling.NewIOError(fmt.Sprintf("cannot open source file %q", path), err)
	}
	defer closeFile(f, path)

	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return curation.NewBatch(), nil
	}
	if err != nil {
		return nil, errhandling.NewIOError(fmt.Sprintf("cannot read csv header of %q", path), err)
	}

	b := curation.NewBatch(header...)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errhandling.NewIOError(fmt.Sprintf("cannot read csv row in %q", path), err)
		}
		rec := make(curation.Record, len(header))
		for i, col := range header {
			rec[col] = row[i]
		}
		b.Append(rec)
	}
	return b, nil
}

// readJSON reads a json file holding an array of document objects. A
// null cell becomes nil; a null array element becomes an empty record.
func readJSON(path string) (*curation.Batch, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errhandling.NewIOError(fmt.Sprintf("cannot read source file %q", path), err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(content, &rows); err != nil {
		return nil, errhandling.NewIOError(fmt.Sprintf("file %q is not a json array of documents", path), err)
	}

	records := make([]curation.Record, len(rows))
	for i, row := range rows {
		if row == nil {
			row = map[string]interface{}{}
		}
		records[i] = curation.Record(row)
	}
	return curation.FromRecords(records), nil
}

// readJSONL reads a jsonl file, one document object per line. Blank
// lines are skipped; a malformed line is an error naming its position.
func readJSONL(path string) (*curation.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errhandling.NewIOError(fmt.Sprintf("cannot open source file %q", path), err)
	}
	defer closeFile(f, path)

	var records []curation.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row map[string]interface{}
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, errhandling.NewIOError(fmt.Sprintf("invalid json on line %d of %q", lineNo, path), err)
		}
		if row == nil {
			row = map[string]interface{}{}
		}
		records = append(records, curation.Record(row))
	}
	if err := scanner.Err(); err != nil {
		return nil, errhandling.NewIOError(fmt.Sprintf("cannot read source file %q", path), err)
	}
	return curation.FromRecords(records), nil
}

// encodeBatch renders the batch in the given format.
func encodeBatch(b *curation.Batch, format string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return encodeCSV(b)
	case FormatJSON:
		return encodeJSON(b)
	case FormatJSONL:
		return encodeJSONL(b)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// encodeCSV writes the schema columns as the header row and every
// record beneath it in schema order. Cells missing from a record are
// written as empty strings.
func encodeCSV(b *curation.Batch) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	columns := b.Columns()
	if err := w.Write(columns); err != nil {
		return nil, errhandling.NewIOError("cannot encode csv header", err)
	}
	for _, rec := range b.Records() {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = csvCell(rec[col])
		}
		if err := w.Write(row); err != nil {
			return nil, errhandling.NewIOError("cannot encode csv row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errhandling.NewIOError("cannot encode csv output", err)
	}
	return buf.Bytes(), nil
}

// encodeJSON renders the batch as an indented json array of objects.
func encodeJSON(b *curation.Batch) ([]byte, error) {
	records := b.Records()
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, errhandling.NewIOError("cannot encode json output", err)
	}
	return append(data, '\n'), nil
}

// encodeJSONL renders the batch one json object per line.
func encodeJSONL(b *curation.Batch) ([]byte, error) {
	var buf bytes.Buffer
	for _, rec := range b.Records() {
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, errhandling.NewIOError("cannot encode jsonl output", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// csvCell renders one cell for csv output. Nil becomes the empty
// string, scalars cast to their plain string form, times are RFC 3339,
// and structured cells (lists, nested objects) fall back to json.
func csvCell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339Nano)
	}
	switch v.(type) {
	case []interface{}, []string, map[string]interface{}:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// closeFile closes a source file, logging close failures at warn level.
func closeFile(f *os.File, path string) {
	if err := f.Close(); err != nil {
		logger.Warn("failed to close source file", "path", path, "error", err.Error())
	}
}
