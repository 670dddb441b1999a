package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisStore keeps the job table in Redis, one hash per job. Retention is
// delegated to key TTL once the job reaches a terminal state. Update is
// get-modify-set: safe because each job has a single writer (its worker) plus
// the cancellation path, which only flips terminal state.
type RedisStore struct {
	client    *redis.Client
	keyNS     string
	retention time.Duration
}

// NewRedisStore connects and pings Redis.
func NewRedisStore(redisURL string, retention time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if retention <= 0 {
		retention = time.Hour
	}
	return &RedisStore{client: c, keyNS: "splitjob", retention: retention}, nil
}

func (s *RedisStore) key(id string) string { return fmt.Sprintf("%s:%s", s.keyNS, id) }

func (s *RedisStore) Create(ctx context.Context, job *Job) error {
	return s.set(ctx, job)
}

func (s *RedisStore) set(ctx context.Context, job *Job) error {
	m := map[string]interface{}{
		"status":   string(job.Status),
		"progress": job.Progress,
		"message":  job.Message,
		"strategy": job.Strategy,
		"original": job.OriginalName,
		"created":  job.CreatedAt.Format(time.RFC3339Nano),
		"archive":  job.ArchivePath,
		"error":    job.Error,
	}
	if job.StartedAt != nil {
		m["started"] = job.StartedAt.Format(time.RFC3339Nano)
	}
	if job.FinishedAt != nil {
		m["finished"] = job.FinishedAt.Format(time.RFC3339Nano)
	}
	if job.Artifacts != nil {
		b, _ := json.Marshal(job.Artifacts)
		m["artifacts"] = string(b)
	}
	if err := s.client.HSet(ctx, s.key(job.ID), m).Err(); err != nil {
		return err
	}
	if job.Status.Terminal() {
		return s.client.Expire(ctx, s.key(job.ID), s.retention).Err()
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Job, bool, error) {
	res, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(res) == 0 {
		return nil, false, nil
	}
	job := &Job{
		ID:           id,
		Status:       Status(res["status"]),
		Message:      res["message"],
		Strategy:     res["strategy"],
		OriginalName: res["original"],
		ArchivePath:  res["archive"],
		Error:        res["error"],
	}
	fmt.Sscan(res["progress"], &job.Progress)
	if t, err := time.Parse(time.RFC3339Nano, res["created"]); err == nil {
		job.CreatedAt = t
	}
	if v := res["started"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.StartedAt = &t
		}
	}
	if v := res["finished"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.FinishedAt = &t
		}
	}
	if v := res["artifacts"]; v != "" {
		_ = json.Unmarshal([]byte(v), &job.Artifacts)
	}
	return job, true, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, fn func(*Job)) error {
	job, ok, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	fn(job)
	return s.set(ctx, job)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }
