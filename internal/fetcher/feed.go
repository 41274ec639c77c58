package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pumptrader/internal/cache"
	"pumptrader/internal/market"
)

const maxFeedBytes = 4 << 20

// FeedOptions parameterise the HTTP token feed.
type FeedOptions struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
	Cache     cache.Store
	CacheTTL  time.Duration
}

// Feed polls a JSON token listing over HTTP.
type Feed struct {
	opts   FeedOptions
	logger zerolog.Logger
	client *http.Client
}

// NewFeed constructs a token feed source.
func NewFeed(opts FeedOptions, logger zerolog.Logger) *Feed {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Feed{
		opts:   opts,
		logger: logger.With().Str("component", "token_feed").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// FetchCandidateTokens retrieves the current token listing.
func (f *Feed) FetchCandidateTokens(ctx context.Context) ([]market.RawToken, error) {
	if strings.TrimSpace(f.opts.URL) == "" {
		return nil, errors.New("token feed url not configured")
	}

	payload, err := f.load(ctx)
	if err != nil {
		return nil, err
	}

	tokens, err := decodeTokens(payload)
	if err != nil {
		return nil, fmt.Errorf("decode token feed: %w", err)
	}
	return tokens, nil
}

func (f *Feed) load(ctx context.Context) ([]byte, error) {
	key := "feed:" + f.opts.URL
	if f.opts.Cache != nil && f.opts.CacheTTL > 0 {
		b, found, err := f.opts.Cache.Get(ctx, key)
		if err != nil {
			f.logger.Warn().Err(err).Msg("feed cache read failed")
		} else if found && json.Valid(b) {
			return b, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.opts.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(f.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "pumptrader/1.0")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseHTTPError("token feed", resp.StatusCode, payload)
	}

	if f.opts.Cache != nil && f.opts.CacheTTL > 0 && json.Valid(payload) {
		if err := f.opts.Cache.Set(ctx, key, payload, f.opts.CacheTTL); err != nil {
			f.logger.Warn().Err(err).Msg("feed cache write failed")
		}
	}
	return payload, nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseHTTPError(service string, status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("%s error (%d): %s", service, status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("%s error (%d): %s", service, status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("%s error (%d): %s", service, status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("%s error (%d)", service, status)
}

var _ market.Source = (*Feed)(nil)
