package orch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	"github.com/liangshengmoran/Nine-chat-backend/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var errNoStream = errors.New("provider returned no stream url")

// advance selects the next track for the room and starts resolving it.
// Engine goroutine only.
func (o *Orchestrator) advance(id domain.RoomID, retry int) {
	rt, ok := o.Rooms.Get(id)
	if !ok {
		return
	}
	if retry >= o.cfg.MaxPlayRetry {
		rt.SetIdle()
		o.notice(id, core.CodeDenied, "several tracks in a row could not be played, pick a song or try again later")
		log.Warn().Str("module", "orch.music").Int64("room", int64(id)).Int("retry", retry).Msg("retry ceiling reached, idle")
		return
	}

	var item *domain.QueueItem
	if next, ok := rt.PopFront(); ok {
		item = &next
	}
	gen := rt.BeginLoading(item)
	o.spawn("resolve", func(ctx context.Context) { o.resolve(ctx, id, gen, item, retry) })
}

// loading reports whether gen is still the room's in-flight selection.
func (o *Orchestrator) loading(id domain.RoomID, gen uint64) (*core.RoomRuntime, bool) {
	rt, ok := o.Rooms.Get(id)
	if !ok || rt.PlayGen() != gen || rt.State() != core.PlaybackLoading {
		return nil, false
	}
	return rt, true
}

func (o *Orchestrator) resolve(ctx context.Context, id domain.RoomID, gen uint64, item *domain.QueueItem, retry int) {
	logger := log.With().Str("module", "orch.music").Int64("room", int64(id)).Int("retry", retry).Logger()

	if item == nil {
		track, err := o.deps.Library.RandomTrack(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("random track")
			o.post(func() {
				if _, ok := o.loading(id, gen); ok {
					o.advance(id, retry+1)
				}
			})
			return
		}
		if track == nil {
			o.post(func() {
				rt, ok := o.loading(id, gen)
				if !ok {
					return
				}
				if rt.QueueLen() > 0 {
					o.advance(id, retry)
					return
				}
				rt.SetIdle()
				o.notice(id, core.CodeDenied, "the music library is empty, pick a song to start playing")
			})
			return
		}
		if track.Source == "" {
			track.Source = domain.DefaultSource
		}
		item = &domain.QueueItem{Track: *track}
	}

	np, err := o.fetch(ctx, item)
	if err != nil {
		metrics.TrackFailuresTotal.Inc()
		logger.Warn().Err(err).Str("mid", string(item.MusicID)).Str("source", item.Source).Msg("track unplayable, purging")
		o.purge(ctx, item.MusicID, logger)
		name := item.Name
		if name == "" {
			name = "unknown track"
		}
		o.post(func() {
			if _, ok := o.loading(id, gen); !ok {
				return
			}
			o.notice(id, core.CodeInfo, fmt.Sprintf("track (%s) can't be played right now, switching to the next one", name))
			o.advance(id, retry+1)
		})
		return
	}
	o.post(func() { o.startPlaying(id, gen, np) })
}

// purge removes an unplayable track from the library under a fresh deadline
// detached from ctx.
func (o *Orchestrator) purge(ctx context.Context, id domain.MusicID, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.IOTimeout)
	defer cancel()
	if err := o.deps.Library.DeleteTrack(ctx, id); err != nil {
		logger.Error().Err(err).Str("mid", string(id)).Msg("purge track")
	}
}

// fetch resolves metadata and the stream url. For every display field the
// first non-empty value wins: metadata, then stream lookup, then the item.
func (o *Orchestrator) fetch(ctx context.Context, item *domain.QueueItem) (*domain.NowPlaying, error) {
	detail, err := o.deps.Provider.ResolveMetadata(ctx, item.MusicID, item.Source)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	stream, err := o.deps.Provider.ResolveStreamURL(ctx, item.MusicID, item.Source)
	if err != nil {
		return nil, fmt.Errorf("stream url: %w", err)
	}
	if stream.URL == "" {
		return nil, errNoStream
	}

	t := detail.Track
	t.MusicID = item.MusicID
	t.Source = item.Source
	t.Name = firstNonEmpty(t.Name, item.Name)
	t.Singer = firstNonEmpty(t.Singer, item.Singer)
	t.Album = firstNonEmpty(t.Album, stream.Album, item.Album)
	t.Cover = firstNonEmpty(t.Cover, stream.Cover, item.Cover)
	t.Duration = firstPositive(t.Duration, stream.Duration, item.Duration)
	if t.Duration <= 0 {
		t.Duration = int(o.cfg.DefaultDuration / time.Second)
	}

	np := &domain.NowPlaying{
		Track:     t,
		StreamURL: stream.URL,
		Lyrics:    detail.Lyrics,
		ChooserID: item.ChooserID(),
		Chooser:   item.Chooser,
	}
	return np, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func (o *Orchestrator) startPlaying(id domain.RoomID, gen uint64, np *domain.NowPlaying) {
	rt, ok := o.loading(id, gen)
	if !ok {
		return
	}
	np.StartedAt = o.clock.Now()
	timer := o.clock.AfterFunc(time.Duration(np.Duration)*time.Second, func() {
		o.post(func() { o.onTrackEnd(id, gen) })
	})
	rt.SetPlaying(np, timer)
	metrics.TracksPlayedTotal.Inc()

	by := "random pick"
	if np.Chooser != nil {
		by = np.Chooser.Nick
	}
	o.broadcast(id, core.EventSwitchMusic, core.SwitchMusic{
		Music:     np,
		StreamURL: np.StreamURL,
		Lyrics:    np.Lyrics,
		Queue:     rt.Queue(),
		Msg:       fmt.Sprintf("now playing %s - %s, chosen by %s", np.Name, np.Singer, by),
	}, "")
	log.Info().Str("module", "orch.music").Int64("room", int64(id)).Str("mid", string(np.MusicID)).
		Int("duration", np.Duration).Msg("playing")
}

func (o *Orchestrator) onTrackEnd(id domain.RoomID, gen uint64) {
	rt, ok := o.Rooms.Get(id)
	if !ok || rt.PlayGen() != gen || rt.State() != core.PlaybackPlaying {
		return
	}
	o.advance(id, 0)
}
