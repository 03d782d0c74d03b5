// Package resultcache stores analysis responses in Redis keyed by image digest.
package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/chessfen/pkg/fendto"
)

const DefaultTTL = 24 * time.Hour

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// Key digests the image bytes together with every hint that changes the result.
func Key(image []byte, hints ...string) string {
	h := sha256.New()
	h.Write(image)
	for _, s := range hints {
		h.Write([]byte{0})
		h.Write([]byte(strings.TrimSpace(s)))
	}
	return "fen:result:" + hex.EncodeToString(h.Sum(nil))
}

// Load returns nil without error on a miss.
func (s *Store) Load(ctx context.Context, key string) (*fendto.AnalysisResponse, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out fendto.AnalysisResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) Save(ctx context.Context, key string, resp *fendto.AnalysisResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, raw, s.ttl).Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
