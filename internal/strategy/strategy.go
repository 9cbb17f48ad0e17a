package strategy

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Member 描述一名投资委员会成员。投票权重在配置阶段固定。
type Member struct {
	Name         string  `yaml:"name"`
	Persona      string  `yaml:"persona"`
	VotingWeight float64 `yaml:"votingWeight"`
	SystemPrompt string  `yaml:"systemPrompt"`
}

// Trading 描述买卖节奏与预算上限。
type Trading struct {
	BuyIntervalSeconds  int     `yaml:"buyIntervalSeconds"`
	SellIntervalSeconds int     `yaml:"sellIntervalSeconds"`
	BuyAmount           string  `yaml:"buyAmount"`
	MaxTotalTrades      int     `yaml:"maxTotalTrades"`
	MaxTotalSpend       string  `yaml:"maxTotalSpend"`
	ConfidenceThreshold float64 `yaml:"confidenceThreshold"`
}

// BuyInterval 返回买入评估周期。
func (t Trading) BuyInterval() time.Duration {
	return time.Duration(t.BuyIntervalSeconds) * time.Second
}

// SellInterval 返回持仓复盘周期。
func (t Trading) SellInterval() time.Duration {
	return time.Duration(t.SellIntervalSeconds) * time.Second
}

// Risk 描述两个交易通道各自的滑点容忍度。
// DEX 上流动性更分散，容忍度刻意比联合曲线宽。
type Risk struct {
	SlippageCurvePercent int `yaml:"slippageCurvePercent"`
	SlippageDexPercent   int `yaml:"slippageDexPercent"`
}

// Personality 描述发帖节奏与人格模式切换阈值（按净投入额划分）。
type Personality struct {
	PostIntervalSeconds int    `yaml:"postIntervalSeconds"`
	ContentMaxChars     int    `yaml:"contentMaxChars"`
	BullMinInvested     string `yaml:"bullMinInvested"`
	NeutralMinInvested  string `yaml:"neutralMinInvested"`
}

// PostInterval 返回发帖周期。
func (p Personality) PostInterval() time.Duration {
	return time.Duration(p.PostIntervalSeconds) * time.Second
}

// Committee 描述委员会投票模式的配置。
type Committee struct {
	Enabled         bool     `yaml:"enabled"`
	VotingThreshold float64  `yaml:"votingThreshold"`
	Members         []Member `yaml:"members"`
}

// Prompts 允许策略文件覆盖默认的评估与发帖提示词。
type Prompts struct {
	BuyEvaluation  string `yaml:"buyEvaluation"`
	SellEvaluation string `yaml:"sellEvaluation"`
	PostGeneration string `yaml:"postGeneration"`
}

// Config 是一份完整的交易策略。
type Config struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Trading     Trading     `yaml:"trading"`
	Risk        Risk        `yaml:"risk"`
	Personality Personality `yaml:"personality"`
	Committee   Committee   `yaml:"committee"`
	Prompts     Prompts     `yaml:"prompts"`
}

// Default 返回内置的默认策略。
func Default() Config {
	return Config{
		Name:        "Fund Agent Default",
		Description: "balanced autonomous venture strategy",
		Trading: Trading{
			BuyIntervalSeconds:  3 * 60 * 60,
			SellIntervalSeconds: 5 * 60 * 60,
			BuyAmount:           "1",
			MaxTotalTrades:      30,
			ConfidenceThreshold: 0.3,
		},
		Risk: Risk{
			SlippageCurvePercent: 15,
			SlippageDexPercent:   20,
		},
		Personality: Personality{
			PostIntervalSeconds: 30 * 60,
			ContentMaxChars:     250,
			BullMinInvested:     "5",
			NeutralMinInvested:  "2",
		},
		Committee: Committee{
			VotingThreshold: 50,
		},
	}
}

// Load 读取策略文件并与默认值合并。路径为空时直接返回默认策略。
// 策略文件可以是部分的：缺失的字段保留默认值。
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("策略文件不存在: %s", path)
		}
		return cfg, fmt.Errorf("读取策略文件失败: %w", err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("解析策略文件失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate 校验策略的内部一致性。委员会模式开启却没有可用成员时
// 必须在启动阶段失败，而不是等到第一轮投票。
func (c *Config) Validate() error {
	if c.Trading.BuyIntervalSeconds <= 0 || c.Trading.SellIntervalSeconds <= 0 {
		return errors.New("交易周期必须为正数")
	}
	if c.Trading.MaxTotalTrades <= 0 {
		return errors.New("maxTotalTrades 必须为正数")
	}
	if c.Committee.Enabled {
		if len(c.Committee.Members) == 0 {
			return errors.New("委员会模式已开启但未配置成员")
		}
		total := 0.0
		for i, m := range c.Committee.Members {
			if m.Name == "" {
				return fmt.Errorf("第 %d 名委员会成员缺少名字", i+1)
			}
			if m.VotingWeight < 0 {
				return fmt.Errorf("成员 %s 的投票权重不能为负", m.Name)
			}
			total += m.VotingWeight
		}
		if total <= 0 {
			return errors.New("委员会总投票权重必须大于零")
		}
		if c.Committee.VotingThreshold <= 0 || c.Committee.VotingThreshold > 100 {
			return errors.New("votingThreshold 必须在 (0,100] 区间内")
		}
	}
	return nil
}

// SoloMember 返回单人模式下使用的默认评估成员。
func (c *Config) SoloMember() Member {
	return Member{
		Name:         "Fund Agent",
		Persona:      "autonomous venture capitalist",
		VotingWeight: 1,
		SystemPrompt: "You are Fund Agent, an autonomous AI venture capitalist managing an on-chain fund.",
	}
}
