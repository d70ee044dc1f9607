package heos

import (
	"encoding/json"
	"fmt"
)

// Now-playing media types.
const (
	MediaTypeSong    = "song"
	MediaTypeStation = "station"
)

// Player describes one entry of the player/get_players payload.
type Player struct {
	Name    string `json:"name"`
	PID     int    `json:"pid"`
	Model   string `json:"model,omitempty"`
	Version string `json:"version,omitempty"`
	IP      string `json:"ip,omitempty"`
	Network string `json:"network,omitempty"`
	Lineout int    `json:"lineout,omitempty"`
}

// QueueEntry is one item of the player/get_queue payload. Queue ids are
// assigned by the device and renumbered from 1 after removals.
type QueueEntry struct {
	QID      int    `json:"qid"`
	Song     string `json:"song,omitempty"`
	Album    string `json:"album,omitempty"`
	Artist   string `json:"artist,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	MediaID  string `json:"mid,omitempty"`
	AlbumID  string `json:"album_id,omitempty"`
}

// NowPlaying is the player/get_now_playing_media payload.
type NowPlaying struct {
	Type    string `json:"type"`
	QID     int    `json:"qid"`
	Song    string `json:"song,omitempty"`
	Album   string `json:"album,omitempty"`
	Artist  string `json:"artist,omitempty"`
	Station string `json:"station,omitempty"`
	MediaID string `json:"mid,omitempty"`
}

// DecodeQueue decodes a player/get_queue payload.
func DecodeQueue(payload json.RawMessage) ([]QueueEntry, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var entries []QueueEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("decode queue payload: %w", err)
	}
	return entries, nil
}

// DecodeNowPlaying decodes a player/get_now_playing_media payload.
func DecodeNowPlaying(payload json.RawMessage) (NowPlaying, error) {
	var now NowPlaying
	if err := json.Unmarshal(payload, &now); err != nil {
		return NowPlaying{}, fmt.Errorf("decode now playing payload: %w", err)
	}
	return now, nil
}

// DecodePlayers decodes a player/get_players payload.
func DecodePlayers(payload json.RawMessage) ([]Player, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var players []Player
	if err := json.Unmarshal(payload, &players); err != nil {
		return nil, fmt.Errorf("decode players payload: %w", err)
	}
	return players, nil
}
