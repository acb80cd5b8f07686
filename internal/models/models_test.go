package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAccessToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tt := []struct {
		name  string
		token AccessToken
		want  bool
	}{
		{name: "well before expiry", token: AccessToken{Value: "t", ExpiresAt: now.Add(time.Hour)}, want: true},
		{name: "inside margin", token: AccessToken{Value: "t", ExpiresAt: now.Add(30 * time.Second)}, want: false},
		{name: "exactly at margin", token: AccessToken{Value: "t", ExpiresAt: now.Add(time.Minute)}, want: false},
		{name: "expired", token: AccessToken{Value: "t", ExpiresAt: now.Add(-time.Second)}, want: false},
		{name: "empty value", token: AccessToken{ExpiresAt: now.Add(time.Hour)}, want: false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.token.ValidAt(now, time.Minute); got != tc.want {
				t.Errorf("ValidAt() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTrackID(t *testing.T) {
	t.Run("Number And String", func(t *testing.T) {
		var v struct {
			A TrackID `json:"a"`
			B TrackID `json:"b"`
			C TrackID `json:"c"`
		}
		if err := json.Unmarshal([]byte(`{"a": 123456789012, "b": "soundcloud:tracks:7", "c": null}`), &v); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if v.A != "123456789012" {
			t.Errorf("expected numeric id, got %q", v.A)
		}
		if v.B != "soundcloud:tracks:7" {
			t.Errorf("expected string id, got %q", v.B)
		}
		if v.C != "" {
			t.Errorf("expected empty id for null, got %q", v.C)
		}
	})

	t.Run("Marshal", func(t *testing.T) {
		out, err := json.Marshal([]TrackID{"42", "urn:x"})
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if string(out) != `[42,"urn:x"]` {
			t.Errorf("unexpected output %s", out)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		var id TrackID
		if err := json.Unmarshal([]byte(`{}`), &id); err == nil {
			t.Error("expected error for object id")
		}
	})
}

func TestDecodePlaylist(t *testing.T) {
	t.Run("Playlist", func(t *testing.T) {
		body := `{
			"kind": "playlist", "id": 9, "title": "Bach essentials",
			"permalink_url": "https://soundcloud.com/u/sets/bach",
			"tracks": [
				{"id": 1, "title": "Air", "media": {"transcodings": [
					{"url": "https://api-v2.soundcloud.com/media/1/hls", "format": {"protocol": "hls", "mime_type": "audio/mpeg"}},
					{"url": "https://api-v2.soundcloud.com/media/1/progressive", "format": {"protocol": "progressive", "mime_type": "audio/mpeg"}}
				]}},
				{"id": 2, "title": "Toccata", "stream_url": "https://api.soundcloud.com/tracks/2/stream"}
			]
		}`

		playlist, err := DecodePlaylist([]byte(body))
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if playlist.Title != "Bach essentials" || len(playlist.Tracks) != 2 {
			t.Fatalf("unexpected playlist %+v", playlist)
		}
		if got := playlist.Tracks[0].Transcodings(); len(got) != 2 || !got[1].IsProgressive() {
			t.Errorf("unexpected transcodings %+v", got)
		}
		if playlist.Tracks[1].Transcodings() != nil {
			t.Error("expected no transcodings for legacy track")
		}
	})

	t.Run("Single Track", func(t *testing.T) {
		playlist, err := DecodePlaylist([]byte(`{"kind": "track", "id": 5, "title": "Solo", "duration": 125000}`))
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if len(playlist.Tracks) != 1 || playlist.Tracks[0].ID != "5" {
			t.Fatalf("expected one-track playlist, got %+v", playlist)
		}
		if d := playlist.Tracks[0].DurationString(); d != "2:05" {
			t.Errorf("DurationString() = %s", d)
		}
	})

	t.Run("Not JSON", func(t *testing.T) {
		if _, err := DecodePlaylist([]byte("<html>")); err == nil {
			t.Error("expected decode error")
		}
	})
}

func TestStreamSet(t *testing.T) {
	set, err := DecodeStreamSet([]byte(`{"http_mp3_128_url": "", "hls_mp3_128_url": "https://h", "preview_mp3_128_url": "https://p", "count": 3}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(set) != 2 {
		t.Errorf("expected empty and non-string fields dropped, got %v", set)
	}

	field, url, ok := set.First([]string{"http_mp3_128_url", "preview_mp3_128_url", "hls_mp3_128_url"})
	if !ok || field != "preview_mp3_128_url" || url != "https://p" {
		t.Errorf("First() = %s %s %v", field, url, ok)
	}

	if _, _, ok := set.First([]string{"missing"}); ok {
		t.Error("expected no candidate")
	}
}
