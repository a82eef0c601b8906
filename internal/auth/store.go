package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/models"
)

var ErrNoSession = errors.New("auth: no stored session")

// SessionStore persists the signed-in session of one client across restarts.
type SessionStore interface {
	Load(ctx context.Context, key string) (*models.Session, error)
	Save(ctx context.Context, key string, s *models.Session) error
	Delete(ctx context.Context, key string) error
}

type DBStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewDBStore(db *gorm.DB, ttl time.Duration) *DBStore {
	return &DBStore{db: db, ttl: ttl, now: time.Now}
}

func (s *DBStore) Load(ctx context.Context, key string) (*models.Session, error) {
	var rec models.SessionRecord
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}

	if !rec.ExpiresAt.IsZero() && s.now().After(rec.ExpiresAt) {
		if err := s.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, ErrNoSession
	}
	return rec.Session(), nil
}

func (s *DBStore) Save(ctx context.Context, key string, sess *models.Session) error {
	rec := models.SessionRecord{
		Key:         key,
		UserID:      sess.UID,
		Email:       sess.Email,
		DisplayName: sess.DisplayName,
		Provider:    sess.Provider,
		SignedInAt:  sess.SignedInAt,
	}
	if s.ttl > 0 {
		rec.ExpiresAt = s.now().Add(s.ttl)
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return errors.Wrap(err, "save session")
	}
	return nil
}

func (s *DBStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.SessionRecord{}).Error; err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, key string) (*models.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}

	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, errors.Wrap(err, "decode session")
	}
	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, sess *models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	if err := s.client.Set(ctx, sessionKey(key), data, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, sessionKey(key)).Err(); err != nil {
		return errors.Wrap(err, "redis delete")
	}
	return nil
}

func sessionKey(key string) string {
	return "storefront:session:" + key
}
