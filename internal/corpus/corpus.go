// Package corpus loads the fixed collection of bioscience research chunks
// that the retrieval engine indexes. It accepts line-delimited JSON, a JSON
// array of records, or tabular CSV (taskbook exports), and normalizes all of
// them into the common Chunk shape. The load order defines chunk IDs: the
// vector index and the chunk list stay positionally aligned through them.
package corpus

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MinChunkLength is the minimum trimmed text length for a record to be kept.
// Shorter records are almost always headers, captions, or stray fragments.
const MinChunkLength = 50

// MaxChunkLength is the maximum text length for a record to be kept. Longer
// records are upstream chunking failures and would dominate any context
// window they appear in.
const MaxChunkLength = 4000

// Format identifies a supported corpus source format.
type Format string

const (
	// FormatJSONL is line-delimited JSON, one record per line.
	FormatJSONL Format = "jsonl"
	// FormatJSON is a single JSON array of records.
	FormatJSON Format = "json"
	// FormatCSV is a tabular export with one research entry per row,
	// split into one chunk per non-empty section column.
	FormatCSV Format = "csv"
)

// DetectFormat infers the corpus format from a file extension.
// Unknown extensions default to JSONL, the most common export shape.
func DetectFormat(path string) Format {
	switch {
	case strings.HasSuffix(path, ".csv"):
		return FormatCSV
	case strings.HasSuffix(path, ".json"):
		return FormatJSON
	default:
		return FormatJSONL
	}
}

// Chunk is one retrievable unit of source text plus its metadata.
// A Chunk is immutable once created; the ID indexes into both the corpus
// chunk list and the vector index.
type Chunk struct {
	// ID is the position of this chunk in load order, starting at 0.
	ID int `json:"id"`

	// Text is the raw chunk content. Non-empty after trimming.
	Text string `json:"text"`

	// Metadata holds free-form attributes: title, paper_id, section,
	// source, authors, year, chunk_index.
	Metadata map[string]string `json:"metadata"`
}

// Source returns the metadata source label, or "unknown" when absent.
func (c Chunk) Source() string {
	if s := c.Metadata["source"]; s != "" {
		return s
	}
	return "unknown"
}

// Section returns the metadata section label, or "N/A" when absent.
func (c Chunk) Section() string {
	if s := c.Metadata["section"]; s != "" {
		return s
	}
	return "N/A"
}

// LoadSummary reports the outcome of a corpus load.
type LoadSummary struct {
	// Loaded is the number of chunks accepted into the corpus.
	Loaded int
	// Skipped is the number of records dropped (malformed, empty, or
	// outside the length bounds). Skips are per-record, never fatal.
	Skipped int
}

// Store is the read-only ordered chunk collection. Built once by Load and
// never mutated afterwards, so it is safe to share across goroutines.
type Store struct {
	chunks []Chunk
}

// NewStore wraps an already-normalized chunk slice, e.g. one reloaded from
// persisted index artifacts. The slice is taken over by the store.
func NewStore(chunks []Chunk) *Store {
	return &Store{chunks: chunks}
}

// Chunks returns the ordered chunk slice. Callers must not modify it.
func (s *Store) Chunks() []Chunk { return s.chunks }

// Len returns the number of chunks in the store.
func (s *Store) Len() int { return len(s.chunks) }

// Get returns the chunk with the given ID and whether it exists.
func (s *Store) Get(id int) (Chunk, bool) {
	if id < 0 || id >= len(s.chunks) {
		return Chunk{}, false
	}
	return s.chunks[id], true
}

// Stats summarizes the corpus by source and section label.
type Stats struct {
	// TotalChunks is the number of chunks in the store.
	TotalChunks int `json:"total_chunks"`
	// Sources counts chunks per source label.
	Sources map[string]int `json:"sources"`
	// Sections counts chunks per section label.
	Sections map[string]int `json:"sections"`
}

// Stats computes per-source and per-section chunk counts.
func (s *Store) Stats() Stats {
	st := Stats{
		TotalChunks: len(s.chunks),
		Sources:     make(map[string]int),
		Sections:    make(map[string]int),
	}
	for _, c := range s.chunks {
		st.Sources[c.Source()]++
		st.Sections[c.Section()]++
	}
	return st
}

// Load reads a corpus file in the given format and returns the store plus a
// load summary. A missing or unreadable file is fatal — the service cannot
// serve without a corpus. Individual malformed records are skipped and
// counted, never fatal.
func Load(path string, format Format, log *slog.Logger) (*Store, LoadSummary, error) {
	if log == nil {
		log = slog.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, LoadSummary{}, fmt.Errorf("corpus: open %s: %w", path, err)
	}
	defer f.Close()

	var chunks []Chunk
	var sum LoadSummary

	switch format {
	case FormatJSONL:
		chunks, sum, err = loadJSONL(f, log)
	case FormatJSON:
		chunks, sum, err = loadJSONArray(f)
	case FormatCSV:
		chunks, sum, err = loadCSV(f, log)
	default:
		return nil, LoadSummary{}, fmt.Errorf("corpus: unknown format %q — valid values: jsonl, json, csv", format)
	}
	if err != nil {
		return nil, LoadSummary{}, fmt.Errorf("corpus: load %s: %w", path, err)
	}

	log.Info("corpus loaded",
		slog.String("path", path),
		slog.String("format", string(format)),
		slog.Int("loaded", sum.Loaded),
		slog.Int("skipped", sum.Skipped),
	)

	return &Store{chunks: chunks}, sum, nil
}

// record is the shape of one JSON corpus record. Field names follow the
// export pipeline; chunk_text_clean is preferred over chunk_text when both
// are present.
type record struct {
	ChunkTextClean string          `json:"chunk_text_clean"`
	ChunkText      string          `json:"chunk_text"`
	Text           string          `json:"text"`
	PaperID        string          `json:"paper_id"`
	Section        string          `json:"section"`
	Source         string          `json:"source"`
	Title          string          `json:"title"`
	Authors        string          `json:"authors"`
	Year           json.RawMessage `json:"year"`
	ChunkIndex     json.RawMessage `json:"chunk_index"`
}

// text returns the preferred text field, trimmed.
func (r record) text() string {
	for _, t := range []string{r.ChunkTextClean, r.ChunkText, r.Text} {
		if s := strings.TrimSpace(t); s != "" {
			return s
		}
	}
	return ""
}

// toChunk converts a parsed record into a Chunk with the given ID, or
// returns false when the record has no usable text.
func (r record) toChunk(id, recordNum int) (Chunk, bool) {
	text := r.text()
	if len(text) < MinChunkLength || len(text) > MaxChunkLength {
		return Chunk{}, false
	}

	paperID := r.PaperID
	if paperID == "" {
		paperID = fmt.Sprintf("Paper_%d", recordNum)
	}
	section := r.Section
	if section == "" {
		section = "Unknown"
	}
	source := r.Source
	if source == "" {
		source = "papers"
	}

	md := map[string]string{
		"paper_id": paperID,
		"section":  section,
		"source":   source,
	}
	if r.Title != "" {
		md["title"] = r.Title
	}
	if r.Authors != "" {
		md["authors"] = r.Authors
	}
	if v := rawString(r.Year); v != "" {
		md["year"] = v
	}
	if v := rawString(r.ChunkIndex); v != "" {
		md["chunk_index"] = v
	}

	return Chunk{ID: id, Text: text, Metadata: md}, true
}

// rawString renders a raw JSON scalar (string or number) as a plain string.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

// loadJSONL parses line-delimited JSON records, one per line. Unparsable
// lines are logged at debug level and counted as skips.
func loadJSONL(r io.Reader, log *slog.Logger) ([]Chunk, LoadSummary, error) {
	var chunks []Chunk
	var sum LoadSummary

	scanner := bufio.NewScanner(r)
	// Research chunks run long; allow lines up to 1 MiB.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			log.Debug("corpus: skipping malformed record", slog.Int("line", lineNum), slog.Any("error", err))
			sum.Skipped++
			continue
		}

		chunk, ok := rec.toChunk(len(chunks), lineNum)
		if !ok {
			sum.Skipped++
			continue
		}
		chunks = append(chunks, chunk)
		sum.Loaded++
	}
	if err := scanner.Err(); err != nil {
		return nil, LoadSummary{}, fmt.Errorf("scan JSONL: %w", err)
	}

	return chunks, sum, nil
}

// loadJSONArray parses a JSON array of records in one read.
func loadJSONArray(r io.Reader) ([]Chunk, LoadSummary, error) {
	var records []record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, LoadSummary{}, fmt.Errorf("parse JSON array: %w", err)
	}

	var chunks []Chunk
	var sum LoadSummary
	for i, rec := range records {
		chunk, ok := rec.toChunk(len(chunks), i+1)
		if !ok {
			sum.Skipped++
			continue
		}
		chunks = append(chunks, chunk)
		sum.Loaded++
	}
	return chunks, sum, nil
}

// sectionColumns are the CSV columns expanded into one chunk each, in order.
var sectionColumns = []string{"Abstract", "Methods", "Results", "Conclusion"}

// loadCSV parses a taskbook-style tabular export. Each row becomes up to one
// chunk per non-empty section column, prefixed with the entry title.
func loadCSV(r io.Reader, log *slog.Logger) ([]Chunk, LoadSummary, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, LoadSummary{}, fmt.Errorf("read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	if _, ok := col["Title"]; !ok {
		return nil, LoadSummary{}, fmt.Errorf("CSV is missing required Title column")
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var chunks []Chunk
	var sum LoadSummary
	rowNum := 1
	for {
		rowNum++
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Debug("corpus: skipping malformed CSV row", slog.Int("row", rowNum), slog.Any("error", err))
			sum.Skipped++
			continue
		}

		title := field(row, "Title")
		rowHadChunk := false
		for _, section := range sectionColumns {
			content := field(row, section)
			if len(content) < MinChunkLength {
				continue
			}
			text := fmt.Sprintf("Title: %s\n%s: %s", title, section, content)
			if len(text) > MaxChunkLength {
				// Never cut through a multi-byte rune.
				cut := MaxChunkLength
				for cut > 0 && !utf8.RuneStart(text[cut]) {
					cut--
				}
				text = text[:cut]
			}
			chunks = append(chunks, Chunk{
				ID:   len(chunks),
				Text: text,
				Metadata: map[string]string{
					"paper_id": fmt.Sprintf("Taskbook_%d", rowNum-1),
					"section":  section,
					"source":   "taskbook",
					"title":    title,
				},
			})
			sum.Loaded++
			rowHadChunk = true
		}
		if !rowHadChunk {
			sum.Skipped++
		}
	}

	return chunks, sum, nil
}
