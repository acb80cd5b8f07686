package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ProtocolProgressive marks a transcoding served as a single progressive download.
const ProtocolProgressive = "progressive"

// AccessToken is an OAuth bearer token and its declared expiry.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// ValidAt reports whether the token can still be used at now, treating it as expired margin before ExpiresAt.
func (t AccessToken) ValidAt(now time.Time, margin time.Duration) bool {
	if t.Value == "" {
		return false
	}
	return now.Before(t.ExpiresAt.Add(-margin))
}

// TrackID is an upstream identifier that may be encoded as a JSON number or string.
type TrackID string

func (id *TrackID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TrackID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = TrackID(n.String())
	return nil
}

func (id TrackID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id TrackID) String() string { return string(id) }

// TranscodingFormat describes how an encoding variant is delivered.
type TranscodingFormat struct {
	Protocol string `json:"protocol"`
	MimeType string `json:"mime_type"`
}

// Transcoding is one encoding variant of a track. URL must be resolved to obtain a playable URL.
type Transcoding struct {
	URL     string            `json:"url"`
	Preset  string            `json:"preset"`
	Snipped bool              `json:"snipped"`
	Format  TranscodingFormat `json:"format"`
}

// IsProgressive reports whether the variant uses the progressive transport.
func (t Transcoding) IsProgressive() bool {
	return t.Format.Protocol == ProtocolProgressive
}

// Media holds the encoding variants of a track.
type Media struct {
	Transcodings []Transcoding `json:"transcodings"`
}

// User is the uploader of a track.
type User struct {
	Username string `json:"username"`
}

// TrackDescriptor is the upstream metadata of a playable item.
type TrackDescriptor struct {
	ID           TrackID `json:"id"`
	Kind         string  `json:"kind,omitempty"`
	Title        string  `json:"title"`
	User         User    `json:"user"`
	Duration     int     `json:"duration"` // milliseconds
	PermalinkURL string  `json:"permalink_url"`
	StreamURL    string  `json:"stream_url,omitempty"` // legacy direct stream
	Streamable   bool    `json:"streamable"`
	Media        *Media  `json:"media,omitempty"`
}

// Transcodings returns the track's encoding variants, or nil.
func (t TrackDescriptor) Transcodings() []Transcoding {
	if t.Media == nil {
		return nil
	}
	return t.Media.Transcodings
}

// DurationString formats Duration as m:ss.
func (t TrackDescriptor) DurationString() string {
	secs := t.Duration / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// Playlist is a resolved playlist. A resolved single track is represented as a playlist of one.
type Playlist struct {
	ID           TrackID           `json:"id"`
	Kind         string            `json:"kind"`
	Title        string            `json:"title"`
	PermalinkURL string            `json:"permalink_url"`
	Tracks       []TrackDescriptor `json:"tracks"`
}

// DecodePlaylist decodes a resolve response, normalizing a single track into a one-track playlist.
func DecodePlaylist(data []byte) (*Playlist, error) {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	if head.Kind == "track" {
		var track TrackDescriptor
		if err := json.Unmarshal(data, &track); err != nil {
			return nil, err
		}
		return &Playlist{
			ID:           track.ID,
			Kind:         track.Kind,
			Title:        track.Title,
			PermalinkURL: track.PermalinkURL,
			Tracks:       []TrackDescriptor{track},
		}, nil
	}

	var playlist Playlist
	if err := json.Unmarshal(data, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// StreamSet is the set of direct stream candidates for a track, keyed by upstream field name.
type StreamSet map[string]string

// DecodeStreamSet keeps every non-empty string field of a streams response.
func DecodeStreamSet(data []byte) (StreamSet, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	set := make(StreamSet, len(raw))
	for field, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			set[field] = s
		}
	}
	return set, nil
}

// First returns the first present candidate in fields order.
func (s StreamSet) First(fields []string) (field, url string, ok bool) {
	for _, f := range fields {
		if u := s[f]; u != "" {
			return f, u, true
		}
	}
	return "", "", false
}

// TokenState is the persisted part of the token cache: the last token and any active cooldown.
type TokenState struct {
	Token         AccessToken
	CooldownUntil time.Time
}

// Token exchange outcomes recorded in the token event log.
const (
	OutcomeIssued      = "issued"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailed      = "failed"
)

// TokenEvent is one recorded token exchange attempt.
type TokenEvent struct {
	ID         string
	ClientID   string
	Outcome    string
	StatusCode int
	CreatedAt  time.Time
}
