package strategy

import (
	"os"
	"path/filepath"
	"testing"
)

func writeStrategy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入策略文件: %v", err)
	}
	return path
}

func TestLoadWithoutPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Trading.MaxTotalTrades != 30 {
		t.Fatalf("MaxTotalTrades = %d, want 30", cfg.Trading.MaxTotalTrades)
	}
	if cfg.Risk.SlippageCurvePercent != 15 || cfg.Risk.SlippageDexPercent != 20 {
		t.Fatalf("slippage = %+v", cfg.Risk)
	}
}

func TestPartialFileMergesOverDefaults(t *testing.T) {
	path := writeStrategy(t, `
name: "Custom Fund"
trading:
  buyIntervalSeconds: 600
  sellIntervalSeconds: 1200
  maxTotalTrades: 5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "Custom Fund" {
		t.Fatalf("Name = %q", cfg.Name)
	}
	if cfg.Trading.MaxTotalTrades != 5 {
		t.Fatalf("MaxTotalTrades = %d, want 5", cfg.Trading.MaxTotalTrades)
	}
	// 未覆盖的字段保留默认值。
	if cfg.Personality.ContentMaxChars != 250 {
		t.Fatalf("ContentMaxChars = %d, want 250", cfg.Personality.ContentMaxChars)
	}
	if cfg.Risk.SlippageDexPercent != 20 {
		t.Fatalf("SlippageDexPercent = %d, want 20", cfg.Risk.SlippageDexPercent)
	}
}

func TestCommitteeWithoutMembersFailsFast(t *testing.T) {
	path := writeStrategy(t, `
trading:
  buyIntervalSeconds: 600
  sellIntervalSeconds: 1200
  maxTotalTrades: 5
committee:
  enabled: true
  votingThreshold: 50
`)
	if _, err := Load(path); err == nil {
		t.Fatal("委员会无成员应当在加载阶段失败")
	}
}

func TestCommitteeZeroTotalWeightFailsFast(t *testing.T) {
	path := writeStrategy(t, `
trading:
  buyIntervalSeconds: 600
  sellIntervalSeconds: 1200
  maxTotalTrades: 5
committee:
  enabled: true
  votingThreshold: 50
  members:
    - name: "Alpha"
      votingWeight: 0
`)
	if _, err := Load(path); err == nil {
		t.Fatal("总权重为零应当在加载阶段失败")
	}
}

func TestInvalidThresholdFailsFast(t *testing.T) {
	path := writeStrategy(t, `
trading:
  buyIntervalSeconds: 600
  sellIntervalSeconds: 1200
  maxTotalTrades: 5
committee:
  enabled: true
  votingThreshold: 120
  members:
    - name: "Alpha"
      votingWeight: 1
`)
	if _, err := Load(path); err == nil {
		t.Fatal("阈值超过 100 应当在加载阶段失败")
	}
}

func TestMissingFileIsAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("不存在的策略文件应当报错")
	}
}
