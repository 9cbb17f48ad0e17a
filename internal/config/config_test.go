package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入配置文件: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"chain":{"rpc_url":"http://127.0.0.1:8545"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("Address = %q", cfg.Server.Address)
	}
	if cfg.Ledger.Driver != "file" {
		t.Fatalf("Ledger.Driver = %q", cfg.Ledger.Driver)
	}
	if cfg.StateSync.Redis.Key != "fundagent:state" {
		t.Fatalf("Redis.Key = %q", cfg.StateSync.Redis.Key)
	}
	if cfg.Narration.Driver != "memory" {
		t.Fatalf("Narration.Driver = %q", cfg.Narration.Driver)
	}
	wantData := filepath.Join(filepath.Dir(path), "data")
	if cfg.Runtime.DataDir != wantData {
		t.Fatalf("DataDir = %q, want %q", cfg.Runtime.DataDir, wantData)
	}
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	path := writeConfig(t, `{
  "chain": {"rpc_url": "http://127.0.0.1:8545"},
  "runtime": {"strategy_path": "strategy.yaml"},
  "llm": {"soul_path": "soul.txt"}
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	base := filepath.Dir(path)
	if cfg.Runtime.StrategyPath != filepath.Join(base, "strategy.yaml") {
		t.Fatalf("StrategyPath = %q", cfg.Runtime.StrategyPath)
	}
	if cfg.LLM.SoulPath != filepath.Join(base, "soul.txt") {
		t.Fatalf("SoulPath = %q", cfg.LLM.SoulPath)
	}
}

func TestLoadRejectsMissingRPC(t *testing.T) {
	path := writeConfig(t, `{}`)
	if _, err := Load(path); err == nil {
		t.Fatal("缺少 rpc_url 应当报错")
	}
}

func TestLoadRejectsMySQLWithoutDSN(t *testing.T) {
	path := writeConfig(t, `{
  "chain": {"rpc_url": "http://127.0.0.1:8545"},
  "ledger": {"driver": "mysql"}
}`)
	if _, err := Load(path); err == nil {
		t.Fatal("mysql 驱动缺少 DSN 应当报错")
	}
}

func TestLoadRejectsUnknownDrivers(t *testing.T) {
	cases := []string{
		`{"chain":{"rpc_url":"http://x"},"ledger":{"driver":"postgres"}}`,
		`{"chain":{"rpc_url":"http://x"},"state_sync":{"driver":"etcd"}}`,
		`{"chain":{"rpc_url":"http://x"},"narration":{"driver":"kafka"}}`,
	}
	for _, content := range cases {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Fatalf("未知驱动应当报错: %s", content)
		}
	}
}

func TestResolveAPIKeyPrefersInline(t *testing.T) {
	t.Setenv("TEST_FUND_KEY", "from-env")
	p := ProviderConfig{APIKey: " inline ", APIKeyEnv: "TEST_FUND_KEY"}
	if got := p.ResolveAPIKey(); got != "inline" {
		t.Fatalf("ResolveAPIKey = %q", got)
	}
	p.APIKey = ""
	if got := p.ResolveAPIKey(); got != "from-env" {
		t.Fatalf("ResolveAPIKey = %q", got)
	}
}
