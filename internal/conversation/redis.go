package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"pedidosbot/core/logger"
	"log/slog"
)

// DataFactory produces a fresh, typed data record for a flow so the redis
// store can decode persisted sessions back into the right shape.
type DataFactory func() any

var (
	dataFactoriesMu sync.RWMutex
	dataFactories   = map[string]DataFactory{}
)

// RegisterData associates a flow name with its data factory. Flows register
// themselves at construction time; registering twice is a programming error.
func RegisterData(flow string, f DataFactory) {
	if flow == "" || f == nil {
		return
	}
	dataFactoriesMu.Lock()
	defer dataFactoriesMu.Unlock()
	dataFactories[flow] = f
}

func dataFactoryFor(flow string) (DataFactory, bool) {
	dataFactoriesMu.RLock()
	defer dataFactoriesMu.RUnlock()
	f, ok := dataFactories[flow]
	return f, ok
}

type sessionRecord struct {
	Flow string          `json:"flow"`
	Step int             `json:"step"`
	Data json.RawMessage `json:"data"`
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs a Store backed by redis, letting sessions survive
// process restarts and expire after ttl of inactivity.
func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &redisStore{client: client, ttl: ttl}
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("conv_session:%d", chatID)
}

func (r *redisStore) Start(chatID int64, flow string, data any) *Session {
	s := &Session{ChatID: chatID, Flow: flow, Step: 0, Data: data}
	r.put(s)
	return s
}

func (r *redisStore) Get(chatID int64) (*Session, bool) {
	ctx, cancel := opCtx()
	defer cancel()
	raw, err := r.client.Get(ctx, sessionKey(chatID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.CONV.Warn("session fetch failed",
				slog.String("event", "session.get"),
				slog.Int64("chat_id", chatID),
				slog.String("err", err.Error()),
			)
		}
		return nil, false
	}
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false
	}
	s := &Session{ChatID: chatID, Flow: rec.Flow, Step: rec.Step}
	if f, ok := dataFactoryFor(rec.Flow); ok {
		data := f()
		if len(rec.Data) > 0 {
			if err := json.Unmarshal(rec.Data, data); err != nil {
				return nil, false
			}
		}
		s.Data = data
	}
	return s, true
}

func (r *redisStore) Save(s *Session) {
	if s == nil {
		return
	}
	// Do not resurrect a session that was ended since the fetch.
	ctx, cancel := opCtx()
	defer cancel()
	n, err := r.client.Exists(ctx, sessionKey(s.ChatID)).Result()
	if err != nil || n == 0 {
		return
	}
	r.put(s)
}

func (r *redisStore) Advance(chatID int64) {
	s, ok := r.Get(chatID)
	if !ok {
		return
	}
	s.Step++
	r.put(s)
}

func (r *redisStore) End(chatID int64) {
	ctx, cancel := opCtx()
	defer cancel()
	_ = r.client.Del(ctx, sessionKey(chatID)).Err()
}

func (r *redisStore) put(s *Session) {
	data, err := json.Marshal(s.Data)
	if err != nil {
		logger.CONV.Error("session encode failed",
			slog.String("event", "session.save"),
			slog.Int64("chat_id", s.ChatID),
			slog.String("flow", s.Flow),
			slog.String("err", err.Error()),
		)
		return
	}
	raw, err := json.Marshal(sessionRecord{Flow: s.Flow, Step: s.Step, Data: data})
	if err != nil {
		return
	}
	ctx, cancel := opCtx()
	defer cancel()
	if err := r.client.Set(ctx, sessionKey(s.ChatID), raw, r.ttl).Err(); err != nil {
		logger.CONV.Error("session save failed",
			slog.String("event", "session.save"),
			slog.Int64("chat_id", s.ChatID),
			slog.String("flow", s.Flow),
			slog.String("err", err.Error()),
		)
	}
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 3*time.Second)
}
