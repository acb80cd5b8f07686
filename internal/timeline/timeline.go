// Package timeline reads TimelineJS documents and tracks the current slide.
package timeline

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/desertthunder/composers/internal/shared"
	"golang.org/x/net/html"
)

// PlaylistAttr marks an element of a slide's HTML as a playlist container.
const PlaylistAttr = "data-soundcloud-playlist"

// TitleID is the unique id given to a title slide that has none.
const TitleID = "title"

// Date is a TimelineJS date; only the year is used for display.
type Date struct {
	Year  string `json:"year"`
	Month string `json:"month,omitempty"`
	Day   string `json:"day,omitempty"`
}

// UnmarshalJSON accepts years written as numbers or strings.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw struct {
		Year  json.Number `json:"year"`
		Month json.Number `json:"month"`
		Day   json.Number `json:"day"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Year, d.Month, d.Day = raw.Year.String(), raw.Month.String(), raw.Day.String()
	return nil
}

// Text is the headline and HTML body of a slide.
type Text struct {
	Headline    string `json:"headline"`
	Text        string `json:"text"`
	PlaylistURL string `json:"playlist_url,omitempty"`
}

// Event is one slide of the timeline.
type Event struct {
	UniqueID  string `json:"unique_id"`
	StartDate *Date  `json:"start_date,omitempty"`
	Text      Text   `json:"text"`
}

// Document is a TimelineJS document.
type Document struct {
	Title  *Event  `json:"title,omitempty"`
	Events []Event `json:"events"`
}

// Slides returns the title slide, if any, followed by the events in document order.
func (d *Document) Slides() []Event {
	slides := make([]Event, 0, len(d.Events)+1)
	if d.Title != nil {
		slides = append(slides, *d.Title)
	}
	return append(slides, d.Events...)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases text and joins its alphanumeric runs with dashes.
func Slugify(text string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(text), "-"), "-")
}

// Parse decodes a document and gives every slide a unique id.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: timeline: %w", shared.ErrInvalidArgument, err)
	}

	seen := make(map[string]bool)
	assign := func(e *Event, fallback string) {
		if e.UniqueID == "" {
			e.UniqueID = Slugify(e.Text.Headline)
		}
		if e.UniqueID == "" {
			e.UniqueID = fallback
		}
		if seen[e.UniqueID] {
			base := e.UniqueID
			for n := 2; seen[e.UniqueID]; n++ {
				e.UniqueID = fmt.Sprintf("%s-%d", base, n)
			}
		}
		seen[e.UniqueID] = true
	}

	if doc.Title != nil {
		assign(doc.Title, TitleID)
	}
	for i := range doc.Events {
		assign(&doc.Events[i], fmt.Sprintf("event-%d", i+1))
	}
	return &doc, nil
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timeline: %w", err)
	}
	return Parse(data)
}

// PlaylistRefs returns the playlist references of e's HTML body in document order.
//
// A slide without playlist containers falls back to its playlist_url field.
func PlaylistRefs(e Event) []string {
	var refs []string
	if root, err := html.Parse(strings.NewReader(e.Text.Text)); err == nil {
		seen := make(map[string]bool)
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.ElementNode {
				for _, a := range n.Attr {
					ref := strings.TrimSpace(a.Val)
					if a.Key == PlaylistAttr && ref != "" && !seen[ref] {
						seen[ref] = true
						refs = append(refs, ref)
					}
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(root)
	}

	if len(refs) == 0 && e.Text.PlaylistURL != "" {
		refs = append(refs, e.Text.PlaylistURL)
	}
	return refs
}

// PlainText strips the markup of an HTML fragment, collapsing whitespace.
func PlainText(fragment string) string {
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		if n.Type == html.ElementNode && n.Data == "style" {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.Join(strings.Fields(b.String()), " ")
}
