// Package cli renders kotoba results for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kotoba/internal/models"
	"github.com/hyperjump/kotoba/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// maxWordWidth caps how much of a logged word the text log view prints.
const maxWordWidth = 32

// ParseOutputFormat accepts "text" or "json". Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteAnalogy writes the answer to q.
func WriteAnalogy(w io.Writer, q *models.AnalogyQuery, result *models.AnalogyResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	if len(result.UnknownWords) > 0 {
		fmt.Fprintf(w, "Unknown word(s): %s\n", strings.Join(result.UnknownWords, ", "))
		writeSuggestions(w, result.UnknownWords, result.Suggestions)
		return nil
	}
	if result.Word == nil {
		fmt.Fprintf(w, "%s : %s :: %s : ?  (no answer)\n", q.A, q.B, q.C)
		return nil
	}
	fmt.Fprintf(w, "%s : %s :: %s : %s\n", q.A, q.B, q.C, *result.Word)
	if len(result.Candidates) > 1 {
		fmt.Fprintf(w, "candidates: %s\n", strings.Join(result.Candidates, ", "))
	}
	fmt.Fprintf(w, "(%dms)\n", result.QueryTime)
	return nil
}

func writeSuggestions(w io.Writer, words []string, suggestions map[string][]string) {
	for _, word := range words {
		if s := suggestions[word]; len(s) > 0 {
			fmt.Fprintf(w, "  %s: did you mean %s?\n", word, strings.Join(s, ", "))
		}
	}
}

// WriteNeighbors writes the closest words to a word.
func WriteNeighbors(w io.Writer, result *models.NeighborsResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "Nearest to %q (%dms)\n", result.Word, result.QueryTime)
	for i, n := range result.Neighbors {
		fmt.Fprintf(w, "%3d. %-24s %.4f\n", i+1, n.Word, n.Distance)
	}
	return nil
}

// WriteLogs writes query log rows in the [A, B, C, D|null] shape.
func WriteLogs(w io.Writer, rows [][4]*string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "No logged queries.")
		return nil
	}
	for _, row := range rows {
		cols := make([]string, 4)
		for i, v := range row {
			if v == nil {
				cols[i] = "-"
				continue
			}
			cols[i] = utils.Truncate(*v, maxWordWidth)
		}
		fmt.Fprintf(w, "%s : %s :: %s : %s\n", cols[0], cols[1], cols[2], cols[3])
	}
	return nil
}

// WriteLogHits writes log search results, best first.
func WriteLogHits(w io.Writer, hits []models.LogHit, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, hits)
	}
	if len(hits) == 0 {
		fmt.Fprintln(w, "No matching queries.")
		return nil
	}
	rows := make([][4]*string, len(hits))
	for i, h := range hits {
		rows[i] = h.Entry.Tuple()
	}
	return WriteLogs(w, rows, OutputText)
}

// WriteStatus writes engine, log and disk figures.
func WriteStatus(w io.Writer, status *models.StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	e := status.Engine
	fmt.Fprintf(w, "ready:              %t\n", e.Ready)
	if e.Ready {
		fmt.Fprintf(w, "generation:         %d\n", e.Generation)
		fmt.Fprintf(w, "source:             %s\n", e.Source)
		fmt.Fprintf(w, "words:              %d   # vocabulary size\n", e.Words)
		fmt.Fprintf(w, "dimensions:         %d\n", e.Dimensions)
		fmt.Fprintf(w, "load_time:          %dms\n", e.LoadTime)
		fmt.Fprintf(w, "build_time:         %dms\n", e.BuildTime)
		fmt.Fprintf(w, "cache_entries:      %d\n", e.CacheEntries)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# index")
	fmt.Fprintf(w, "type:               %s\n", e.Index.Type)
	if e.Index.Trees > 0 {
		fmt.Fprintf(w, "trees:              %d\n", e.Index.Trees)
		fmt.Fprintf(w, "leaf_capacity:      %d\n", e.Index.LeafCapacity)
		fmt.Fprintf(w, "nodes:              %d\n", e.Index.Nodes)
		fmt.Fprintf(w, "leaves:             %d\n", e.Index.Leaves)
		fmt.Fprintf(w, "max_depth:          %d\n", e.Index.MaxDepth)
		fmt.Fprintf(w, "from_snapshot:      %t\n", e.Index.FromSnapshot)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "log_entries:        %d\n", status.LogEntries)
	fmt.Fprintf(w, "disk_usage:         %s   # embeddings + snapshot + log\n", utils.FormatBytes(status.DiskUsageBytes))
	return nil
}
