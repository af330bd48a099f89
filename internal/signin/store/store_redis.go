package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"signinguard/internal/signin/models"
	"signinguard/pkg/platform/sentinel"
)

const (
	signInKeyPrefix = "signin:"

	// DefaultMaxPerSubject bounds each per-subject set. The detector never
	// looks further back than two records.
	DefaultMaxPerSubject = 50
)

var allTypes = []models.SignInType{models.SignInInteractive, models.SignInMachine}

// RedisStore keeps the most recent successful sign-ins per subject in sorted
// sets scored by creation time in unix milliseconds. It is a hot index for
// the detector, not an archive: failed attempts are dropped and each set is
// trimmed to MaxPerSubject entries.
type RedisStore struct {
	client        *redis.Client
	maxPerSubject int
	retention     time.Duration
}

type RedisStoreOption func(*RedisStore)

// WithMaxPerSubject caps how many records are kept per subject and type.
func WithMaxPerSubject(n int) RedisStoreOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.maxPerSubject = n
		}
	}
}

// WithRetention expires a subject's set after a period of inactivity.
func WithRetention(d time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client:        client,
		maxPerSubject: DefaultMaxPerSubject,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func signInKey(subjectID string, t models.SignInType) string {
	return signInKeyPrefix + string(t) + ":" + subjectID
}

// Append adds a successful record and trims the set in one transaction.
// Unsuccessful records are accepted and discarded.
func (s *RedisStore) Append(ctx context.Context, record *models.Record) error {
	if err := validate(record); err != nil {
		return err
	}
	if !record.Succeeded {
		return nil
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode sign-in: %w", err)
	}
	key := signInKey(record.SubjectID, record.Type)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(record.CreatedAt.UnixMilli()),
			Member: payload,
		})
		pipe.ZRemRangeByRank(ctx, key, 0, int64(-s.maxPerSubject-1))
		if s.retention > 0 {
			pipe.Expire(ctx, key, s.retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append sign-in: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, filter models.ListFilter, page models.Page) (*models.ResultSet, error) {
	page = page.Normalize()

	types := filter.Types
	if len(types) == 0 {
		types = allTypes
	}
	upper := "+inf"
	if !filter.Before.IsZero() {
		upper = strconv.FormatInt(filter.Before.UnixMilli(), 10)
	}
	// Each set is sorted, so the first offset+size+1 of each is enough to
	// produce the merged page.
	want := int64(page.Offset + page.Size + 1)

	var merged []*models.Record
	for _, t := range types {
		members, err := s.client.ZRevRangeByScore(ctx, signInKey(filter.SubjectID, t), &redis.ZRangeBy{
			Min:   "-inf",
			Max:   upper,
			Count: want,
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("list sign-ins: %w: %w", sentinel.ErrUnavailable, err)
		}
		for _, m := range members {
			var r models.Record
			if err := json.Unmarshal([]byte(m), &r); err != nil {
				return nil, fmt.Errorf("decode sign-in: %w", err)
			}
			if filter.Matches(&r) {
				merged = append(merged, &r)
			}
		}
	}

	newestFirst(merged)
	return paginate(merged, page), nil
}
