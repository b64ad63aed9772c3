// Package output formats command results for a human operator or a script.
//
// PrintTable renders tab-aligned columns for interactive use; the JSON and
// CSV formatters alongside it are what import/resume/analyze/status switch
// to under --format json, or what the analyzer writes its retry file with.
package output

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// TableFormatter formats output as a human-readable table.
type TableFormatter struct {
	writer *tabwriter.Writer
}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{
		writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
	}
}

// WriteHeader writes table headers.
func (t *TableFormatter) WriteHeader(headers ...string) error {
	for i, h := range headers {
		if i > 0 {
			fmt.Fprint(t.writer, "\t")
		}
		fmt.Fprint(t.writer, h)
	}
	fmt.Fprintln(t.writer)
	fmt.Fprintln(t.writer, "---\t---")
	return nil
}

// WriteRow writes a table row.
func (t *TableFormatter) WriteRow(values ...string) error {
	for i, v := range values {
		if i > 0 {
			fmt.Fprint(t.writer, "\t")
		}
		fmt.Fprint(t.writer, v)
	}
	fmt.Fprintln(t.writer)
	return nil
}

// Flush flushes the table output.
func (t *TableFormatter) Flush() error {
	return t.writer.Flush()
}

// PrintTable is a convenience function to print a table to stdout.
func PrintTable(headers []string, rows [][]string) error {
	formatter := NewTableFormatter(os.Stdout)
	if err := formatter.WriteHeader(headers...); err != nil {
		return err
	}
	for _, row := range rows {
		if err := formatter.WriteRow(row...); err != nil {
			return err
		}
	}
	return formatter.Flush()
}

