// Package cli formats jobmatch results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/jobmatch/internal/indexer"
	"github.com/hyperjump/jobmatch/internal/models"
	"github.com/hyperjump/jobmatch/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// previewLen is the number of runes of chunk text shown per hit.
const previewLen = 200

// ParseOutputFormat accepts "text" or "json"; empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes a search or match response in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %s (%dms)\n\n", response.Total, response.Collection, response.QueryTime)
	for _, m := range response.Matches {
		writeMatch(w, m)
	}
	return nil
}

func writeMatch(w io.Writer, m *models.Match) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", m.Rank, m.Score)
	fmt.Fprintf(w, "Document: %s", m.DocumentID())
	if idx, ok := models.AsInt(m.Payload[models.FieldChunkIndex]); ok {
		fmt.Fprintf(w, " (chunk %d)", idx)
	}
	fmt.Fprintln(w)
	if title := Title(m.Text()); title != "" {
		fmt.Fprintf(w, "Title: %s\n", title)
	}
	if owner, ok := m.Payload[models.FieldUserID].(string); ok && owner != "" {
		fmt.Fprintf(w, "Owner: %s\n", owner)
	}
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(m.Text(), previewLen))
}

// Title returns the text before the first colon, which is the job title
// for rows imported with the job profile. Text without a short leading
// segment has no title.
func Title(text string) string {
	i := strings.Index(text, ":")
	if i <= 0 || i > 120 {
		return ""
	}
	return strings.TrimSpace(text[:i])
}

// WriteIndexResult writes the outcome of indexing one document.
func WriteIndexResult(w io.Writer, res *models.IndexResult, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, res)
	}
	fmt.Fprintf(w, "Indexed %s into %s: %d chunks, %d points in %dms\n",
		res.DocumentID, res.Collection, res.ChunkCount, len(res.PointIDs), res.Duration)
	if len(res.DegradedChunks) > 0 {
		fmt.Fprintf(w, "  degraded (zero vector): %v\n", res.DegradedChunks)
	}
	if len(res.FailedChunks) > 0 {
		fmt.Fprintf(w, "  not stored: %v\n", res.FailedChunks)
	}
	if res.RunID != "" {
		fmt.Fprintf(w, "  run: %s\n", res.RunID)
	}
	return nil
}

// WriteCSVSummary writes the outcome of a CSV import.
func WriteCSVSummary(w io.Writer, sum *indexer.CSVSummary, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, sum)
	}
	fmt.Fprintf(w, "Imported %s into %s in %dms\n", sum.File, sum.Collection, sum.DurationMs)
	fmt.Fprintf(w, "  rows: %d  indexed: %d  skipped: %d  failed: %d\n", sum.Rows, sum.Indexed, sum.Skipped, sum.Failed)
	fmt.Fprintf(w, "  points: %d  degraded chunks: %d\n", sum.Chunks, sum.Degraded)
	return nil
}

// WriteDirectorySummary writes the outcome of indexing a directory.
func WriteDirectorySummary(w io.Writer, sum *indexer.DirectorySummary, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, sum)
	}
	fmt.Fprintf(w, "Indexed %d files (%d points), skipped %d, failed %d\n", sum.Indexed, sum.Points, sum.Skipped, sum.Failed)
	for _, e := range sum.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	return nil
}

// WriteRuns writes ledger runs as a table, newest first.
func WriteRuns(w io.Writer, runs []*models.IndexRun, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, runs)
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-9s  %-16s  %s  chunks=%d points=%d degraded=%d\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.Collection, r.DocumentID,
			r.ChunkCount, r.PointCount, r.DegradedChunks)
		if r.Error != "" {
			fmt.Fprintf(w, "    %s: %s\n", r.Stage, r.Error)
		}
	}
	return nil
}

// WriteCounts writes name/count pairs sorted by name.
func WriteCounts(w io.Writer, title string, counts map[string]int64) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "%s:\n", title)
	for _, name := range names {
		fmt.Fprintf(w, "  %-20s %d\n", name, counts[name])
	}
}
