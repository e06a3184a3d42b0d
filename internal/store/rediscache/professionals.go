package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/store"
)

const (
	DefaultProfessionalTTL = 5 * time.Minute

	professionalKeyPrefix = "careslot:professional:"
	professionalListKey   = "careslot:professionals"
)

// ProfessionalDirectory is a read-through cache in front of another
// directory. Cache failures fall through to the backing store.
type ProfessionalDirectory struct {
	client *redis.Client
	next   store.ProfessionalDirectory
	ttl    time.Duration
	log    *slog.Logger
}

func NewProfessionalDirectory(client *redis.Client, next store.ProfessionalDirectory, ttl time.Duration, log *slog.Logger) *ProfessionalDirectory {
	if ttl <= 0 {
		ttl = DefaultProfessionalTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &ProfessionalDirectory{
		client: client,
		next:   next,
		ttl:    ttl,
		log:    log.With(slog.String("component", "professional_cache")),
	}
}

func (d *ProfessionalDirectory) Get(ctx context.Context, id uuid.UUID) (domain.Professional, error) {
	key := professionalKeyPrefix + id.String()

	var cached domain.Professional
	if ok := d.read(ctx, key, &cached); ok {
		return cached, nil
	}

	p, err := d.next.Get(ctx, id)
	if err != nil {
		return domain.Professional{}, err
	}
	d.write(ctx, key, p)
	return p, nil
}

func (d *ProfessionalDirectory) List(ctx context.Context) ([]domain.Professional, error) {
	var cached []domain.Professional
	if ok := d.read(ctx, professionalListKey, &cached); ok {
		return cached, nil
	}

	pros, err := d.next.List(ctx)
	if err != nil {
		return nil, err
	}
	d.write(ctx, professionalListKey, pros)
	return pros, nil
}

func (d *ProfessionalDirectory) read(ctx context.Context, key string, dst any) bool {
	raw, err := d.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			d.log.Warn("cache read failed", slog.String("key", key), slog.Any("err", err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		d.log.Warn("cache entry undecodable", slog.String("key", key), slog.Any("err", err))
		return false
	}
	return true
}

func (d *ProfessionalDirectory) write(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := d.client.Set(ctx, key, raw, d.ttl).Err(); err != nil {
		d.log.Warn("cache write failed", slog.String("key", key), slog.Any("err", err))
	}
}

// NewClient parses a redis:// URL and verifies the connection.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
