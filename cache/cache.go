package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/symphonia/tms_backend/config"
)

// TTL classes. Volatile sync status is short-lived, filtered query results
// medium, reference data (carriers) long.
const (
	TTLStatus    = 30 * time.Second
	TTLQuery     = 300 * time.Second
	TTLReference = 3600 * time.Second
)

// Service fronts reads with redis and degrades to an in-process map whenever
// redis is unconfigured or unreachable. The backend decision is re-evaluated
// on every call, so the service self-heals once connectivity returns.
// Every operation except HealthCheck swallows backend errors into a miss.
type Service struct {
	memory *memoryStore
	logger *logrus.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	fallbacks atomic.Int64
}

func NewService(logger *logrus.Logger) *Service {
	return &Service{
		memory: newMemoryStore(),
		logger: logger,
	}
}

func (s *Service) redisLive() bool {
	return config.GetRedisDB() != nil
}

// Get returns the cached value unmarshalled into dest. A false return means
// miss, expired, or backend failure; never an error.
func (s *Service) Get(key string, dest interface{}) bool {
	if s.redisLive() {
		exists, err := config.GetRedisObject(key, dest)
		if err == nil {
			if exists {
				s.hits.Add(1)
			} else {
				s.misses.Add(1)
			}
			return exists
		}
		s.fallbacks.Add(1)
		config.LogError(s.logger, "cache", "Get", "redis get failed, falling back", key, err)
	}

	raw, ok := s.memory.get(key)
	if !ok {
		s.misses.Add(1)
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.misses.Add(1)
		return false
	}
	s.hits.Add(1)
	return true
}

// Set stores the value under key for ttl. Errors are swallowed; a failed set
// simply means the next Get is a miss.
func (s *Service) Set(key string, value interface{}, ttl time.Duration) {
	if s.redisLive() {
		if err := config.SetRedisObject(key, value, ttl); err == nil {
			return
		} else {
			s.fallbacks.Add(1)
			config.LogError(s.logger, "cache", "Set", "redis set failed, falling back", key, err)
		}
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	s.memory.set(key, raw, ttl)
}

func (s *Service) Delete(keys ...string) {
	if len(keys) == 0 {
		return
	}
	if s.redisLive() {
		if err := config.RemoveRedisKey(keys...); err != nil {
			s.fallbacks.Add(1)
			config.LogError(s.logger, "cache", "Delete", "redis del failed", keys, err)
		}
	}
	// Delete from both stores: entries written during a redis outage live in
	// the fallback map.
	s.memory.delete(keys...)
}

// Invalidate removes every key matching the glob pattern and returns how many
// were removed.
func (s *Service) Invalidate(pattern string) int {
	count := 0
	if s.redisLive() {
		keys, err := config.ScanRedisKeys(pattern)
		if err != nil {
			s.fallbacks.Add(1)
			config.LogError(s.logger, "cache", "Invalidate", "redis scan failed", pattern, err)
		} else if len(keys) > 0 {
			if err := config.RemoveRedisKey(keys...); err == nil {
				count += len(keys)
			}
		}
	}
	count += s.memory.invalidate(pattern)
	return count
}

// HealthCheck is the one operation that reports backend trouble instead of
// hiding it: it round-trips a probe key through the live backend.
func (s *Service) HealthCheck(ctx context.Context) bool {
	key := "tms:cache:health"
	if s.redisLive() {
		if err := config.SetRedisValue(key, "ok", 5*time.Second); err != nil {
			return false
		}
		val, exists, err := config.GetRedisValue(key)
		return err == nil && exists && val == "ok"
	}
	s.memory.set(key, []byte(`"ok"`), 5*time.Second)
	_, ok := s.memory.get(key)
	return ok
}

type Stats struct {
	Backend   string `json:"backend"`
	Keys      int    `json:"keys"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Fallbacks int64  `json:"fallbacks"`
}

func (s *Service) Stats() Stats {
	backend := "memory"
	keys := s.memory.len()
	if s.redisLive() {
		backend = "redis"
		if n, err := config.GetRedisDB().DBSize(config.GetRedisContext()).Result(); err == nil {
			keys = int(n)
		}
	}
	return Stats{
		Backend:   backend,
		Keys:      keys,
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Fallbacks: s.fallbacks.Load(),
	}
}
