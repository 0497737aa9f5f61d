package domain

import "time"

type MusicID string

const DefaultSource = "kugou"

type Track struct {
	MusicID  MusicID `json:"music_mid"`
	Source   string  `json:"source"`
	Name     string  `json:"music_name"`
	Singer   string  `json:"music_singer"`
	Album    string  `json:"music_album"`
	Cover    string  `json:"music_cover"`
	Duration int     `json:"music_duration"`
}

// QueueItem is a pending track; a nil Chooser means the system picked it.
type QueueItem struct {
	Track
	Chooser *UserSnapshot `json:"user_info,omitempty"`
}

func (q *QueueItem) ChooserID() UserID {
	if q.Chooser == nil {
		return SystemUserID
	}
	return q.Chooser.ID
}

// TrackDetail is what a metadata lookup returns.
type TrackDetail struct {
	Track
	Lyrics string
}

// StreamInfo is what a stream url lookup returns. Any field but URL may be empty.
type StreamInfo struct {
	URL      string
	Duration int
	Cover    string
	Album    string
}

type NowPlaying struct {
	Track
	StreamURL string        `json:"-"`
	Lyrics    string        `json:"-"`
	StartedAt time.Time     `json:"-"`
	ChooserID UserID        `json:"choose_user_id"`
	Chooser   *UserSnapshot `json:"user_info,omitempty"`
}

func (n *NowPlaying) Deadline() time.Time {
	return n.StartedAt.Add(time.Duration(n.Duration) * time.Second)
}

// Elapsed is the playback offset in whole seconds, clamped to the track length.
func (n *NowPlaying) Elapsed(now time.Time) int {
	if n.Duration > 0 && !now.Before(n.Deadline()) {
		return n.Duration
	}
	sec := int(now.Sub(n.StartedAt).Round(time.Second) / time.Second)
	if sec < 0 {
		return 0
	}
	if n.Duration > 0 && sec > n.Duration {
		return n.Duration
	}
	return sec
}
