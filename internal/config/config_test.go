// README: Config loader tests.
package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Stream.HeartbeatInterval() != 30*time.Second {
		t.Fatalf("heartbeat = %s", cfg.Stream.HeartbeatInterval())
	}
	if cfg.Stream.MaxMissedHeartbeats != 3 || cfg.Stream.BufferSize != 16 {
		t.Fatalf("stream = %+v", cfg.Stream)
	}
	if cfg.Redis.RelayEnabled {
		t.Fatal("relay enabled by default")
	}
	if cfg.Kafka.Brokers != nil {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ORDERTRACK_STORE", "memory")
	t.Setenv("ORDERTRACK_RELAY_ENABLED", "true")
	t.Setenv("ORDERTRACK_STREAM_HEARTBEAT_SECONDS", "5")
	t.Setenv("ORDERTRACK_STREAM_MAX_MISSED", "not-a-number")
	t.Setenv("ORDERTRACK_KAFKA_BROKERS", "k1:9092, ,k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != StoreMemory {
		t.Fatalf("driver = %q", cfg.Store.Driver)
	}
	if !cfg.Redis.RelayEnabled {
		t.Fatal("relay not enabled")
	}
	if cfg.Stream.HeartbeatInterval() != 5*time.Second {
		t.Fatalf("heartbeat = %s", cfg.Stream.HeartbeatInterval())
	}
	if cfg.Stream.MaxMissedHeartbeats != 3 {
		t.Fatalf("max missed = %d", cfg.Stream.MaxMissedHeartbeats)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
}
