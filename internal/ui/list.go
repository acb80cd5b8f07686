package ui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/composers/internal/timeline"
)

var _ list.Item = slideItem{}

// slideItem wraps [timeline.Event] to implement [list.Item].
type slideItem struct {
	slide timeline.Event
}

func (i slideItem) FilterValue() string { return i.slide.Text.Headline }
func (i slideItem) Title() string       { return i.slide.Text.Headline }
func (i slideItem) Description() string {
	if i.slide.StartDate == nil {
		return ""
	}
	return i.slide.StartDate.Year
}

func slideItems(slides []timeline.Event) []list.Item {
	items := make([]list.Item, len(slides))
	for i, s := range slides {
		items[i] = slideItem{slide: s}
	}
	return items
}
