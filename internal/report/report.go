// package report renders run summaries for humans and files.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/crmbridge/target-salesforce/internal/target"
)

// WriteJSON writes the summary as indented JSON.
func WriteJSON(w io.Writer, summary *target.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

// WriteText writes a plain per-stream table, streams sorted by name.
func WriteText(w io.Writer, summary *target.Summary) error {
	names := make([]string, 0, len(summary.Streams))
	for name := range summary.Streams {
		names = append(names, name)
	}
	sort.Strings(names)

	if _, err := fmt.Fprintf(w, "run %s (%d records)\n", summary.RunID, summary.Records()); err != nil {
		return err
	}
	for _, name := range names {
		c := summary.Streams[name]
		_, err := fmt.Fprintf(w, "  %-20s created=%d updated=%d skipped=%d failed=%d\n",
			name, c.Created, c.Updated, c.Skipped, c.Failed)
		if err != nil {
			return err
		}
	}
	if len(summary.Failures) > 0 {
		if _, err := fmt.Fprintf(w, "  %d failed record(s)\n", len(summary.Failures)); err != nil {
			return err
		}
	}
	return nil
}

// SaveFailuresCSV writes failed records to path, one row per failure.
// No file is written when the run had no failures.
func SaveFailuresCSV(path string, summary *target.Summary) error {
	if len(summary.Failures) == 0 {
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create failure report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"stream", "error"}); err != nil {
		return err
	}
	for _, failure := range summary.Failures {
		if err := w.Write([]string{failure.Stream, failure.Error}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
