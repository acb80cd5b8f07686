// package formatter renders resolved playlists in various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/composers/internal/models"
	"github.com/desertthunder/composers/internal/shared"
)

// Format names accepted by [Render].
const (
	FormatText     = "text"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

// Formats lists the names accepted by [Render].
var Formats = []string{FormatText, FormatCSV, FormatMarkdown}

// ExportToCSV converts a Playlist to CSV format with columns: Index, ID, Title, Artist, Duration, Permalink, Progressive
func ExportToCSV(playlist *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Index", "ID", "Title", "Artist", "Duration", "Permalink", "Progressive"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range playlist.Tracks {
		record := []string{
			strconv.Itoa(i),
			track.ID.String(),
			track.Title,
			track.User.Username,
			track.DurationString(),
			track.PermalinkURL,
			strconv.FormatBool(hasProgressive(track)),
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

// ExportToMarkdown converts a Playlist to a Markdown list linking each track
func ExportToMarkdown(playlist *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer

	title := playlist.Title
	if playlist.PermalinkURL != "" {
		title = fmt.Sprintf("[%s](%s)", title, playlist.PermalinkURL)
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(playlist.Tracks)))

	for i, track := range playlist.Tracks {
		name := escapeMarkdown(track.Title)
		if track.PermalinkURL != "" {
			name = fmt.Sprintf("[%s](%s)", name, track.PermalinkURL)
		}
		artist := ""
		if track.User.Username != "" {
			artist = " - " + escapeMarkdown(track.User.Username)
		}
		buf.WriteString(fmt.Sprintf("%d. %s%s [%s]\n", i+1, name, artist, track.DurationString()))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Playlist to plain text format
func ExportToText(playlist *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", playlist.Title))
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(playlist.Tracks)))

	for i, track := range playlist.Tracks {
		line := fmt.Sprintf("%2d. %s", i, track.Title)
		if track.User.Username != "" {
			line += " - " + track.User.Username
		}
		buf.WriteString(fmt.Sprintf("%s (%s)\n", line, track.DurationString()))
	}

	return buf.Bytes(), nil
}

// Render dispatches to the exporter named by format.
func Render(playlist *models.Playlist, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		return ExportToText(playlist)
	case FormatCSV:
		return ExportToCSV(playlist)
	case FormatMarkdown, "md":
		return ExportToMarkdown(playlist)
	default:
		return nil, fmt.Errorf("%w: format %q (want one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
}

// WriteExport renders playlist and writes it to path.
func WriteExport(playlist *models.Playlist, format, path string) error {
	data, err := Render(playlist, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

func hasProgressive(t models.TrackDescriptor) bool {
	for _, tc := range t.Transcodings() {
		if tc.IsProgressive() {
			return true
		}
	}
	return false
}

var markdownEscaper = strings.NewReplacer(`[`, `\[`, `]`, `\]`, `*`, `\*`, `_`, `\_`)

func escapeMarkdown(s string) string { return markdownEscaper.Replace(s) }
