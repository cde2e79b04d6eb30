// Package export renders completed job results as delimited text.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"pulsedash.app/harvester/internal/model"
)

// WriteCSV writes one header row of the given columns followed by one row
// per result record. Values containing commas or quotes are quoted by the
// csv writer; array values are joined with semicolons; nulls become empty
// cells.
func WriteCSV(w io.Writer, columns []string, results []model.ResultRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(columns))
	for _, record := range results {
		for i, col := range columns {
			row[i] = cell(record[col])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ";")
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = cell(item)
		}
		return strings.Join(parts, ";")
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
