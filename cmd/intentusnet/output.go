package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// outputFormat is the --output flag's domain: structured JSON for tooling,
// JSON Lines for streaming consumers, or a human-readable table.
type outputFormat string

const (
	formatJSON  outputFormat = "json"
	formatJSONL outputFormat = "jsonl"
	formatTable outputFormat = "table"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch outputFormat(s) {
	case formatJSON, formatJSONL, formatTable, "":
		if s == "" {
			return formatTable, nil
		}
		return outputFormat(s), nil
	default:
		return "", fmt.Errorf("--output must be one of json, jsonl, table, got %q", s)
	}
}

// writeOne renders a single value per format: json = indented JSON, jsonl =
// compact single-line JSON, table = the caller-supplied key/value rows.
func writeOne(w io.Writer, format outputFormat, v any, tableRows func() [][2]string) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatJSONL:
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	default:
		for _, row := range tableRows() {
			_, _ = fmt.Fprintf(w, "%-20s %s\n", row[0]+":", row[1])
		}
		return nil
	}
}

// writeMany renders a slice: json = one indented array, jsonl = one compact
// line per element, table = one line per element via rowFn.
func writeMany[T any](w io.Writer, format outputFormat, items []T, rowFn func(T) string) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatJSONL:
		for _, item := range items {
			data, err := json.Marshal(item)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(w, string(data)); err != nil {
				return err
			}
		}
		return nil
	default:
		for _, item := range items {
			if _, err := fmt.Fprintln(w, rowFn(item)); err != nil {
				return err
			}
		}
		return nil
	}
}

// sortedKeys is a small formatting helper for table rows built from maps.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
