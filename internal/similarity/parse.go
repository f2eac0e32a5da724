package similarity

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/librisapp/libris-server/internal/domain"
)

// Format is an input file format.
type Format string

// Supported formats.
const (
	FormatCSV   Format = "csv"
	FormatTSV   Format = "tsv"
	FormatJSONL Format = "jsonl"
)

// ErrUnknownFormat is returned for files whose extension is not recognized.
var ErrUnknownFormat = errors.New("unknown similarity file format")

// DetectFormat picks the format from a file extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".tsv", ".tab":
		return FormatTSV, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatTSV, FormatJSONL:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// LineError reports a malformed record.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Parse reads every edge from r. Delimited files take columns
// origin,destination,score and may start with a header row; JSON lines are
// objects with the same keys. Blank lines and lines starting with # are
// ignored. A leading byte order mark is dropped, and UTF-16 input marked
// by one is decoded.
func Parse(r io.Reader, format Format) ([]domain.SimilarityEdge, error) {
	// Spreadsheet exports often start with a byte order mark.
	r = transform.NewReader(r, xunicode.BOMOverride(transform.Nop))
	switch format {
	case FormatCSV:
		return parseDelimited(r, ',')
	case FormatTSV:
		return parseDelimited(r, '\t')
	case FormatJSONL:
		return parseJSONLines(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func parseDelimited(r io.Reader, comma rune) ([]domain.SimilarityEdge, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.Comment = '#'
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var edges []domain.SimilarityEdge
	for first := true; ; first = false {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return edges, nil
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &LineError{Line: pe.Line, Err: pe.Err}
			}
			return nil, fmt.Errorf("read delimited: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if first && isHeader(record) {
			continue
		}
		e, err := parseRecord(record[0], record[1], record[2])
		if err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		edges = append(edges, e)
	}
}

// isHeader reports whether the first row names its columns.
func isHeader(record []string) bool {
	_, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
	return err != nil
}

func parseRecord(origin, destination, score string) (domain.SimilarityEdge, error) {
	var (
		e   domain.SimilarityEdge
		err error
	)
	if e.Origin, err = strconv.ParseInt(strings.TrimSpace(origin), 10, 64); err != nil {
		return e, fmt.Errorf("origin: %w", err)
	}
	if e.Destination, err = strconv.ParseInt(strings.TrimSpace(destination), 10, 64); err != nil {
		return e, fmt.Errorf("destination: %w", err)
	}
	if e.Score, err = strconv.ParseFloat(strings.TrimSpace(score), 64); err != nil {
		return e, fmt.Errorf("score: %w", err)
	}
	return e, nil
}

type jsonEdge struct {
	Origin      *int64   `json:"origin"`
	Destination *int64   `json:"destination"`
	Score       *float64 `json:"score"`
}

func parseJSONLines(r io.Reader) ([]domain.SimilarityEdge, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var edges []domain.SimilarityEdge
	for line := 1; sc.Scan(); line++ {
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		var je jsonEdge
		if err := json.Unmarshal(raw, &je); err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		if je.Origin == nil || je.Destination == nil || je.Score == nil {
			return nil, &LineError{Line: line, Err: errors.New("origin, destination and score are required")}
		}
		edges = append(edges, domain.SimilarityEdge{Origin: *je.Origin, Destination: *je.Destination, Score: *je.Score})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read json lines: %w", err)
	}
	return edges, nil
}
