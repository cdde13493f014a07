package event

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ExportJSON writes events as a JSON array.
func ExportJSON(w io.Writer, events []Event) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		return fmt.Errorf("export json: %w", err)
	}
	return nil
}

// csvHeader is the fixed column set of the CSV export format. Metadata is
// serialized as a JSON string in the last column.
var csvHeader = []string{"timestamp", "level", "stage", "type", "message", "metadata"}

// ExportCSV writes events in the CSV boundary format.
func ExportCSV(w io.Writer, events []Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("export csv header: %w", err)
	}

	for _, ev := range events {
		meta := "{}"
		if len(ev.Metadata) > 0 {
			raw, err := json.Marshal(ev.Metadata)
			if err != nil {
				return fmt.Errorf("export csv metadata: %w", err)
			}
			meta = string(raw)
		}
		record := []string{
			ev.Timestamp.Format(time.RFC3339),
			string(ev.Level),
			ev.Stage,
			string(ev.Type),
			ev.Message,
			meta,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("export csv record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
