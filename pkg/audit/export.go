package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Export encodes decisions in the given format
func Export(decisions []*Decision, format ExportFormat) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return exportJSON(decisions)
	case FormatNDJSON:
		return exportNDJSON(decisions)
	case FormatCSV:
		return exportCSV(decisions)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

func exportJSON(decisions []*Decision) ([]byte, error) {
	if decisions == nil {
		decisions = []*Decision{}
	}
	return json.MarshalIndent(decisions, "", "  ")
}

func exportNDJSON(decisions []*Decision) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)

	for _, d := range decisions {
		if err := encoder.Encode(d); err != nil {
			return nil, fmt.Errorf("failed to encode decision: %w", err)
		}
	}

	return buf.Bytes(), nil
}

func exportCSV(decisions []*Decision) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{
		"ID",
		"Timestamp",
		"RequestID",
		"UserID",
		"Email",
		"Resource",
		"Action",
		"Result",
		"Grant",
		"Cached",
		"Reason",
		"ExecutionTimeMs",
	}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, d := range decisions {
		row := []string{
			strconv.FormatInt(d.ID, 10),
			d.Timestamp.UTC().Format(time.RFC3339),
			d.RequestID,
			d.UserID,
			d.Email,
			d.Resource,
			d.Action,
			string(d.Result),
			d.Grant,
			strconv.FormatBool(d.Cached),
			d.Reason,
			strconv.FormatFloat(float64(d.ExecutionTime)/float64(time.Millisecond), 'f', 3, 64),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}
