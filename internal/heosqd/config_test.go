package heosqd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "heosqd.toml")
	data := []byte("" +
		"[server]\n" +
		"broker = \"mqtt://localhost\"\n" +
		"identity = \"heosqd-test\"\n" +
		"\n" +
		"[modules.queue_mgr]\n" +
		"enabled = true\n" +
		"service_id = \"queue-mgr\"\n" +
		"\n" +
		"[[devices]]\n" +
		"id = \"media_player.living_room\"\n" +
		"name = \"Living Room\"\n" +
		"host = \"10.0.0.5\"\n" +
		"pid = 5\n" +
		"aliases = [\"lr\"]\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Broker != "mqtt://localhost" {
		t.Fatalf("expected broker")
	}
	if !cfg.Modules.QueueMgr.Enabled || cfg.Modules.QueueMgr.ServiceID != "queue-mgr" {
		t.Fatalf("expected queue_mgr enabled")
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].PID != 5 || cfg.Devices[0].Aliases[0] != "lr" {
		t.Fatalf("unexpected devices: %+v", cfg.Devices)
	}
}

func TestLoadConfigRejectsMissingPath(t *testing.T) {
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatalf("expected error for directory path")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("default config path: %v", err)
	}
	if path == "" {
		t.Fatalf("expected path")
	}
}
