package resolver

import (
	"context"
	"errors"

	"github.com/desertthunder/composers/internal/models"
)

var (
	errNoTranscodings = errors.New("no transcodings")
	errNoTrackID      = errors.New("track has no id")
	errNoStreamField  = errors.New("no usable stream field")
	errNoLegacyURL    = errors.New("no stream_url")
)

// TranscodingStrategy resolves the progressive transcoding, or the first one when none is progressive.
type TranscodingStrategy struct {
	API API
}

func (TranscodingStrategy) Name() string { return "transcoding" }

func (s *TranscodingStrategy) Attempt(ctx context.Context, track models.TrackDescriptor) Result {
	t, ok := pickTranscoding(track.Transcodings())
	if !ok {
		return skip(errNoTranscodings)
	}

	u, err := s.API.ResolveTranscoding(ctx, t.URL)
	if err != nil {
		return classify(err)
	}
	return resolved(u, t.Preset)
}

func pickTranscoding(ts []models.Transcoding) (models.Transcoding, bool) {
	var first *models.Transcoding
	for i := range ts {
		if ts[i].URL == "" {
			continue
		}
		if ts[i].IsProgressive() {
			return ts[i], true
		}
		if first == nil {
			first = &ts[i]
		}
	}
	if first == nil {
		return models.Transcoding{}, false
	}
	return *first, true
}

// StreamsStrategy fetches the track's stream set and takes the first present field in Fields order.
type StreamsStrategy struct {
	API    API
	Fields []string
}

func (StreamsStrategy) Name() string { return "streams" }

func (s *StreamsStrategy) Attempt(ctx context.Context, track models.TrackDescriptor) Result {
	if track.ID == "" {
		return skip(errNoTrackID)
	}

	set, err := s.API.TrackStreams(ctx, track.ID)
	if err != nil {
		return classify(err)
	}

	field, u, ok := set.First(s.Fields)
	if !ok {
		return skip(errNoStreamField)
	}
	return resolved(u, field)
}

// LegacyStrategy returns the descriptor's stream_url without a network call.
type LegacyStrategy struct{}

func (LegacyStrategy) Name() string { return "legacy" }

func (LegacyStrategy) Attempt(_ context.Context, track models.TrackDescriptor) Result {
	if track.StreamURL == "" {
		return skip(errNoLegacyURL)
	}
	return resolved(track.StreamURL, "stream_url")
}
