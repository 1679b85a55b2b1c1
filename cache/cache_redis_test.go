package cache

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/symphonia/tms_backend/config"
)

// Exercises the redis backend the way the memory tests exercise the fallback:
// round trip, TTL expiry, overwrite reset and glob invalidation.
func TestRedisBackend(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	defer func() { _ = dockerRmForce(redisName) }()
	defer config.DisconnectRedis()

	t.Setenv("REDIS_ADDRESS", "127.0.0.1:"+redisPort)
	t.Setenv("REDIS_PASSWORD", "")
	config.ConnectRedisWithRetry()
	if err := config.ClearRedis(context.Background()); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	s := newTestService()
	if backend := s.Stats().Backend; backend != "redis" {
		t.Fatalf("backend = %s, want redis", backend)
	}
	if !s.HealthCheck(context.Background()) {
		t.Fatal("redis backend health check should pass")
	}

	t.Run("round trip", func(t *testing.T) {
		type payload struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		}
		s.Set("tms:test:r1", payload{Name: "alpha", Count: 3}, TTLQuery)

		var got payload
		if !s.Get("tms:test:r1", &got) {
			t.Fatal("expected hit after Set")
		}
		if got.Name != "alpha" || got.Count != 3 {
			t.Fatalf("unexpected value: %+v", got)
		}
	})

	t.Run("ttl expiry", func(t *testing.T) {
		s.Set("tms:test:expiring", "value", 200*time.Millisecond)

		var got string
		if !s.Get("tms:test:expiring", &got) {
			t.Fatal("expected hit before expiry")
		}
		time.Sleep(400 * time.Millisecond)
		if s.Get("tms:test:expiring", &got) {
			t.Fatal("expected miss after expiry")
		}
	})

	t.Run("overwrite resets timer", func(t *testing.T) {
		s.Set("tms:test:k", "first", 200*time.Millisecond)
		time.Sleep(120 * time.Millisecond)
		s.Set("tms:test:k", "second", time.Hour)
		time.Sleep(160 * time.Millisecond)

		var got string
		if !s.Get("tms:test:k", &got) {
			t.Fatal("expected hit, overwrite should have reset the expiry timer")
		}
		if got != "second" {
			t.Fatalf("expected overwritten value, got %q", got)
		}
	})

	t.Run("glob invalidation", func(t *testing.T) {
		s.Set(SyncStatusKey(1), "a", TTLStatus)
		s.Set(SyncStatusKey(2), "b", TTLStatus)
		s.Set(CarrierKey("ext-1"), "c", TTLReference)
		// A matching key written outside the cache service is swept too.
		if err := config.SetRedisValue("tms:sync:status:99", `"raw"`, time.Minute); err != nil {
			t.Fatalf("seed raw key: %v", err)
		}

		if count := s.Invalidate(SyncStatusPattern); count != 3 {
			t.Fatalf("expected 3 invalidated keys, got %d", count)
		}
		var got string
		if s.Get(SyncStatusKey(1), &got) {
			t.Fatal("expected sync status key to be invalidated")
		}
		if !s.Get(CarrierKey("ext-1"), &got) {
			t.Fatal("carrier key should survive a sync-status invalidation")
		}
	})
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("tms-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		out, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil && strings.Contains(out, "PONG") {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
