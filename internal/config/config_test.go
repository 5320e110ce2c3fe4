package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadConfigEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig(\"\"): %v", err)
	}
	if cfg.ListenAddr != DefaultConfig().ListenAddr {
		t.Fatalf("LoadConfig(\"\") did not return defaults")
	}
}

func TestLoadConfigOverlaysYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shard.yaml")
	contents := "role: shard\nlisten_addr: \":9999\"\nchannel_count: 4\nshard_id: shard-7\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Fatalf("ListenAddr = %q, want :9999", cfg.ListenAddr)
	}
	if cfg.ChannelCount != 4 {
		t.Fatalf("ChannelCount = %d, want 4", cfg.ChannelCount)
	}
	if cfg.ShardID != "shard-7" {
		t.Fatalf("ShardID = %q, want shard-7", cfg.ShardID)
	}
	// fields absent from the overlay keep their defaults
	if cfg.AutosavePeriod != DefaultConfig().AutosavePeriod {
		t.Fatalf("AutosavePeriod should keep its default when omitted from the overlay")
	}
}

func TestLoadConfigOverlaysShardEndpoints(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "login.yaml")
	contents := "role: login\n" +
		"shard_endpoints:\n" +
		"  - shard_id: shard-1\n" +
		"    client_addr: 127.0.0.1:23000\n" +
		"  - shard_id: shard-2\n" +
		"    client_addr: 127.0.0.1:23100\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.ShardEndpoints) != 2 {
		t.Fatalf("ShardEndpoints = %v, want 2 entries", cfg.ShardEndpoints)
	}
	if cfg.ShardEndpoints[0].ShardID != "shard-1" || cfg.ShardEndpoints[0].ClientAddr != "127.0.0.1:23000" {
		t.Fatalf("ShardEndpoints[0] = %+v, want shard-1 at 127.0.0.1:23000", cfg.ShardEndpoints[0])
	}
	if cfg.ShardEndpoints[1].ShardID != "shard-2" || cfg.ShardEndpoints[1].ClientAddr != "127.0.0.1:23100" {
		t.Fatalf("ShardEndpoints[1] = %+v, want shard-2 at 127.0.0.1:23100", cfg.ShardEndpoints[1])
	}
}

func TestValidateRejectsChannelCountOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChannelCount = 128
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() should reject channel_count 128")
	}
	cfg.ChannelCount = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() should reject channel_count 0")
	}
}

func TestValidateRejectsMissingListenAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ListenAddr = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() should reject an empty listen_addr")
	}
}
