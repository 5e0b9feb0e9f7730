package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/elearn-backend/internal/config"
	"github.com/stemsi/elearn-backend/internal/scoring"
)

var errStaleAnswerKey = errors.New("answer key generation moved")

// AnswerKeySource loads answer keys from the database.
type AnswerKeySource interface {
	AnswerKey(ctx context.Context, testID int) ([]scoring.KeyEntry, error)
}

// AnswerKeyService serves answer keys read-through a Redis cache.
type AnswerKeyService struct {
	source AnswerKeySource
	rdb    *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewAnswerKeyService creates a new AnswerKeyService.
func NewAnswerKeyService(source AnswerKeySource, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *AnswerKeyService {
	return &AnswerKeyService{
		source: source,
		rdb:    rdb,
		ttl:    ttl,
		log:    log.With().Str("component", "answer_key_service").Logger(),
	}
}

// GetAnswerKey returns the answer key of a test ordered by question ID.
// A test without questions yields an empty key, never an error.
func (s *AnswerKeyService) GetAnswerKey(ctx context.Context, testID int) ([]scoring.KeyEntry, error) {
	cacheKey := config.CacheKey.TestAnswerKey(testID)

	cached, err := s.rdb.Get(ctx, cacheKey).Bytes()
	switch {
	case err == nil:
		var key []scoring.KeyEntry
		if jsonErr := json.Unmarshal(cached, &key); jsonErr == nil {
			if key == nil {
				key = []scoring.KeyEntry{}
			}
			return key, nil
		}
		s.log.Warn().Int("test_id", testID).Msg("Discarding malformed cached answer key")
	case !errors.Is(err, redis.Nil):
		s.log.Warn().Err(err).Int("test_id", testID).Msg("Answer key cache read failed, using database")
	}

	// Read before the load, so a replace committed after it is detected.
	gen, genErr := s.generation(ctx, testID)
	if genErr != nil {
		s.log.Warn().Err(genErr).Int("test_id", testID).Msg("Answer key generation read failed, skipping cache fill")
	}

	key, err := s.source.AnswerKey(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load answer key: %w", err)
	}
	if key == nil {
		key = []scoring.KeyEntry{}
	}

	if genErr == nil {
		s.fill(ctx, testID, gen, key)
	}
	return key, nil
}

// fill caches key unless the test was invalidated since gen was read.
func (s *AnswerKeyService) fill(ctx context.Context, testID int, gen int64, key []scoring.KeyEntry) {
	data, err := json.Marshal(key)
	if err != nil {
		return
	}
	genKey := config.CacheKey.TestAnswerKeyGeneration(testID)

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleAnswerKey
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, config.CacheKey.TestAnswerKey(testID), data, s.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleAnswerKey), errors.Is(err, redis.TxFailedErr):
		s.log.Debug().Int("test_id", testID).Msg("Answer key changed during load, not cached")
	default:
		s.log.Warn().Err(err).Int("test_id", testID).Msg("Answer key cache write failed")
	}
}

func (s *AnswerKeyService) generation(ctx context.Context, testID int) (int64, error) {
	gen, err := s.rdb.Get(ctx, config.CacheKey.TestAnswerKeyGeneration(testID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Invalidate drops the cached answer key of a test and bumps its generation,
// so loads that started before the change do not write the old key back.
func (s *AnswerKeyService) Invalidate(ctx context.Context, testID int) {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, config.CacheKey.TestAnswerKeyGeneration(testID))
		pipe.Del(ctx, config.CacheKey.TestAnswerKey(testID))
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Int("test_id", testID).Msg("Failed to invalidate answer key cache")
	}
}
