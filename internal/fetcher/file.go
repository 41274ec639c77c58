package fetcher

import (
	"context"
	"fmt"
	"os"

	"pumptrader/internal/market"
)

// FileSource replays a token listing saved on disk, in the same format the feed serves.
type FileSource struct {
	Path string
}

func (s FileSource) FetchCandidateTokens(_ context.Context) ([]market.RawToken, error) {
	payload, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	tokens, err := decodeTokens(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	return tokens, nil
}

var _ market.Source = FileSource{}
