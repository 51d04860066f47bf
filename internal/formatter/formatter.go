// package formatter renders torrent lists and audit entries for the CLI (CSV, JSON, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/transportal/internal/models"
	"github.com/desertthunder/transportal/internal/shared"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a --format value. Empty selects text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatCSV, FormatMarkdown:
		return f, nil
	default:
		return "", fmt.Errorf("%w: format %q (expected text, json, csv or markdown)", shared.ErrInvalidArgument, s)
	}
}

// Torrents renders torrents in the given format.
func Torrents(torrents []models.Torrent, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return ExportToJSON(torrents)
	case FormatCSV:
		return ExportToCSV(torrents)
	case FormatMarkdown:
		return ExportToMarkdown(torrents)
	default:
		return ExportToText(torrents)
	}
}

// ExportToCSV converts torrents to CSV with columns: Hash, Name, Status, Progress, Size, ETA, Added
func ExportToCSV(torrents []models.Torrent) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Hash", "Name", "Status", "Progress", "Size", "ETA", "Added"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, t := range torrents {
		record := []string{
			t.HashString,
			t.Name,
			t.Status.String(),
			strconv.Itoa(t.Percent()),
			strconv.FormatInt(t.TotalSize, 10),
			strconv.FormatInt(t.Eta, 10),
			t.Added().UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts torrents to indented JSON using the daemon's field names.
func ExportToJSON(torrents []models.Torrent) ([]byte, error) {
	if torrents == nil {
		torrents = []models.Torrent{}
	}
	return shared.MarshalJSON(torrents, true)
}

// ExportToMarkdown converts torrents to a Markdown table
func ExportToMarkdown(torrents []models.Torrent) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Torrents\n\n**Count**: %d\n\n", len(torrents)))
	buf.WriteString("| Name | Status | Progress | Size | ETA |\n")
	buf.WriteString("|------|--------|----------|------|-----|\n")
	for _, t := range torrents {
		name := strings.ReplaceAll(t.Name, "|", `\|`)
		buf.WriteString(fmt.Sprintf("| %s | %s | %d%% | %s | %s |\n",
			name, t.Status, t.Percent(), shared.FormatBytes(t.TotalSize), shared.FormatETA(t.Eta)))
	}

	return buf.Bytes(), nil
}

// ExportToText converts torrents to aligned plain text columns
func ExportToText(torrents []models.Torrent) ([]byte, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "NAME\tSTATUS\tDONE\tSIZE\tETA\tDOWN\tUP")
	for _, t := range torrents {
		fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\t%s\t%s\t%s\n",
			t.Name, t.Status, t.Percent(), shared.FormatBytes(t.TotalSize), shared.FormatETA(t.Eta),
			shared.FormatRate(t.RateDownload), shared.FormatRate(t.RateUpload))
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write text table: %w", err)
	}
	return buf.Bytes(), nil
}

// AuditToText converts audit entries to aligned plain text columns
func AuditToText(entries []models.AuditEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "#\tTIME\tACTION\tUSER\tTARGET\tREMOTE\tDETAIL")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Sequence, e.CreatedAt.Local().Format(time.DateTime), e.Action, e.Username, e.Target, e.RemoteAddr, e.Detail)
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write text table: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteExport writes rendered data to path, or returns false when path is empty so the caller
// prints it instead.
func WriteExport(data []byte, path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write export file: %w", err)
	}
	return true, nil
}
