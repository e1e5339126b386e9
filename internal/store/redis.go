package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis stores records as hashes under "conversion:<filename>" with a TTL.
type Redis struct {
	client *redis.Client
	keyNS  string
	ttl    time.Duration
}

func NewRedis(redisURL string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: c, keyNS: "conversion", ttl: ttl}, nil
}

func (s *Redis) key(filename string) string { return s.keyNS + ":" + filename }

func (s *Redis) Put(ctx context.Context, r Record) error {
	m := map[string]interface{}{
		"filename":        r.Filename,
		"kind":            r.Kind,
		"mode":            r.Mode,
		"size":            r.Size,
		"checksum":        r.Checksum,
		"pages":           r.Pages,
		"conversion_time": strconv.FormatFloat(r.ConversionTime, 'f', 3, 64),
		"s3_url":          r.S3URL,
		"created_at":      r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	k := s.key(r.Filename)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, m)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	return err
}

func (s *Redis) Get(ctx context.Context, filename string) (Record, bool, error) {
	res, err := s.client.HGetAll(ctx, s.key(filename)).Result()
	if err != nil {
		return Record{}, false, err
	}
	if len(res) == 0 {
		return Record{}, false, nil
	}
	return recordFromHash(res), true, nil
}

// recordFromHash ignores malformed numeric fields; they read as zero.
func recordFromHash(h map[string]string) Record {
	r := Record{
		Filename: h["filename"],
		Kind:     h["kind"],
		Mode:     h["mode"],
		Checksum: h["checksum"],
		S3URL:    h["s3_url"],
	}
	r.Size, _ = strconv.ParseInt(h["size"], 10, 64)
	r.Pages, _ = strconv.Atoi(h["pages"])
	r.ConversionTime, _ = strconv.ParseFloat(h["conversion_time"], 64)
	if t, err := time.Parse(time.RFC3339Nano, h["created_at"]); err == nil {
		r.CreatedAt = t
	}
	return r
}

func (s *Redis) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *Redis) Close() error { return s.client.Close() }
