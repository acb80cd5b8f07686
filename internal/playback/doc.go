// Package playback drives the playlist widgets of a timeline page.
//
// A [Controller] loads each widget's playlist, resolves tracks on demand and keeps at most one
// track playing across the page. When the media API is rate limited a widget falls back to the
// embedded player URL and stops issuing requests.
package playback
