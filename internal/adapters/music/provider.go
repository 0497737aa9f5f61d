package music

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
)

var ErrUpstream = errors.New("music provider error")

// HTTPProvider talks to a music gateway exposing /music/detail and /music/src.
type HTTPProvider struct {
	base   string
	client *http.Client
}

func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type detailData struct {
	Info   domain.Track `json:"music_info"`
	Lyrics string       `json:"music_lrc"`
}

type srcData struct {
	URL        string `json:"url"`
	TimeLength int    `json:"timeLength"`
	Cover      string `json:"cover"`
	Album      string `json:"album"`
}

func (p *HTTPProvider) ResolveMetadata(ctx context.Context, id domain.MusicID, source string) (*domain.TrackDetail, error) {
	var d detailData
	if err := p.get(ctx, "/music/detail", id, source, &d); err != nil {
		return nil, err
	}
	d.Info.MusicID = id
	d.Info.Source = source
	return &domain.TrackDetail{Track: d.Info, Lyrics: d.Lyrics}, nil
}

func (p *HTTPProvider) ResolveStreamURL(ctx context.Context, id domain.MusicID, source string) (*domain.StreamInfo, error) {
	var d srcData
	if err := p.get(ctx, "/music/src", id, source, &d); err != nil {
		return nil, err
	}
	if d.URL == "" {
		return nil, fmt.Errorf("%w: empty stream url for %s", ErrUpstream, id)
	}
	return &domain.StreamInfo{URL: d.URL, Duration: d.TimeLength, Cover: d.Cover, Album: d.Album}, nil
}

func (p *HTTPProvider) get(ctx context.Context, path string, id domain.MusicID, source string, out any) error {
	q := url.Values{}
	q.Set("mid", string(id))
	q.Set("source", source)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrUpstream, path, resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUpstream, path, err)
	}
	if env.Code != http.StatusOK || len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: %s: %s", ErrUpstream, path, env.Msg)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode %s data: %v", ErrUpstream, path, err)
	}
	return nil
}
