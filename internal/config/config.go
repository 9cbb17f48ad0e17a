package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config 描述基金智能体在启动阶段需要加载的核心配置。
// 策略层面的参数（交易节奏、委员会成员等）放在独立的策略文件里，
// 由 internal/strategy 负责解析。
type Config struct {
	Server    ServerConfig    `json:"server"`
	Logging   LoggingConfig   `json:"logging"`
	LLM       LLMConfig       `json:"llm"`
	Chain     ChainConfig     `json:"chain"`
	Ledger    LedgerConfig    `json:"ledger"`
	StateSync StateSyncConfig `json:"state_sync"`
	Narration NarrationConfig `json:"narration"`
	Discovery DiscoveryConfig `json:"discovery"`
	Social    SocialConfig    `json:"social"`
	Runtime   RuntimeConfig   `json:"runtime"`
}

// ServerConfig 控制状态接口的监听地址。
type ServerConfig struct {
	Address string `json:"address"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level        string   `json:"level"`
	Format       string   `json:"format"`
	Outputs      []string `json:"outputs"`
	AuditEnabled bool     `json:"audit_enabled"`
	AuditPath    string   `json:"audit_path"`
}

// LLMConfig 用于配置大模型推理的调用方式。
type LLMConfig struct {
	Provider  string         `json:"provider"`
	Anthropic ProviderConfig `json:"anthropic"`
	OpenAI    ProviderConfig `json:"openai"`
	SoulPath  string         `json:"soul_path"`
}

// ProviderConfig 描述单个推理服务的访问参数。
type ProviderConfig struct {
	APIKey         string `json:"api_key"`
	APIKeyEnv      string `json:"api_key_env"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回推理调用的超时时间。
func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// ResolveAPIKey 按照 api_key、api_key_env 的顺序解析密钥。
func (p ProviderConfig) ResolveAPIKey() string {
	if key := strings.TrimSpace(p.APIKey); key != "" {
		return key
	}
	if p.APIKeyEnv != "" {
		return strings.TrimSpace(os.Getenv(p.APIKeyEnv))
	}
	return ""
}

// ChainConfig 包含访问区块链节点与签名交易所需的信息。
type ChainConfig struct {
	RPCURL                string `json:"rpc_url"`
	PrivateKeyEnv         string `json:"private_key_env"`
	FundTokenAddress      string `json:"fund_token_address"`
	CurveRouterAddress    string `json:"curve_router_address"`
	DEXRouterAddress      string `json:"dex_router_address"`
	WrappedNativeAddress  string `json:"wrapped_native_address"`
	ConfirmTimeoutSeconds int    `json:"confirm_timeout_seconds"`
}

// ConfirmTimeout 返回等待交易确认的超时时间。
func (c ChainConfig) ConfirmTimeout() time.Duration {
	if c.ConfirmTimeoutSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.ConfirmTimeoutSeconds) * time.Second
}

// ResolvePrivateKey 从环境变量解析交易私钥。
func (c ChainConfig) ResolvePrivateKey() string {
	if c.PrivateKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.PrivateKeyEnv))
}

// LedgerConfig 描述交易台账的持久化后端。
type LedgerConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// StateSyncConfig 描述状态快照的远端同步方式。
type StateSyncConfig struct {
	Driver          string      `json:"driver"`
	IntervalSeconds int         `json:"interval_seconds"`
	Redis           RedisConfig `json:"redis"`
}

// Interval 返回远端同步周期。
func (s StateSyncConfig) Interval() time.Duration {
	if s.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

// RedisConfig 描述 Redis 的连接参数。
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Key      string `json:"key"`
}

// NarrationConfig 描述叙事事件的投递方式。
type NarrationConfig struct {
	Driver   string         `json:"driver"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RabbitMQConfig 描述 RabbitMQ 的连接参数。
type RabbitMQConfig struct {
	URL     string `json:"url"`
	Queue   string `json:"queue"`
	Durable bool   `json:"durable"`
}

// DiscoveryConfig 描述候选代币的发现来源。
type DiscoveryConfig struct {
	ListURL        string `json:"list_url"`
	ScrapeURL      string `json:"scrape_url"`
	Limit          int    `json:"limit"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回发现请求的超时时间。
func (d DiscoveryConfig) Timeout() time.Duration {
	if d.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// SocialConfig 描述社区发帖客户端的访问参数。
type SocialConfig struct {
	Enabled   bool   `json:"enabled"`
	BaseURL   string `json:"base_url"`
	APIKeyEnv string `json:"api_key_env"`
	Submolt   string `json:"submolt"`
}

// RuntimeConfig 放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir      string `json:"data_dir"`
	StrategyPath string `json:"strategy_path"`
}

// Load 解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "anthropic"
	}
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = "file"
	}
	if c.StateSync.Driver == "" {
		c.StateSync.Driver = "none"
	}
	if c.StateSync.Redis.Key == "" {
		c.StateSync.Redis.Key = "fundagent:state"
	}
	if c.Narration.Driver == "" {
		c.Narration.Driver = "memory"
	}
	if c.Narration.RabbitMQ.Queue == "" {
		c.Narration.RabbitMQ.Queue = "fundagent.narration"
	}
	if c.Discovery.Limit <= 0 {
		c.Discovery.Limit = 10
	}
	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
	if c.Runtime.StrategyPath != "" && !filepath.IsAbs(c.Runtime.StrategyPath) {
		c.Runtime.StrategyPath = filepath.Join(baseDir, c.Runtime.StrategyPath)
	}
	if c.LLM.SoulPath != "" && !filepath.IsAbs(c.LLM.SoulPath) {
		c.LLM.SoulPath = filepath.Join(baseDir, c.LLM.SoulPath)
	}
	if c.Logging.AuditEnabled && c.Logging.AuditPath == "" {
		c.Logging.AuditPath = filepath.Join(c.Runtime.DataDir, "audit.log")
	}
}

func (c *Config) validate() error {
	if c.Chain.RPCURL == "" {
		return errors.New("chain.rpc_url 不能为空")
	}
	switch c.Ledger.Driver {
	case "file":
	case "mysql":
		if strings.TrimSpace(c.Ledger.DSN) == "" {
			return errors.New("ledger.driver=mysql 时必须配置 ledger.dsn")
		}
	default:
		return fmt.Errorf("未知的台账驱动: %s", c.Ledger.Driver)
	}
	switch c.StateSync.Driver {
	case "none":
	case "redis":
		if c.StateSync.Redis.Address == "" {
			return errors.New("state_sync.driver=redis 时必须配置 redis.address")
		}
	default:
		return fmt.Errorf("未知的状态同步驱动: %s", c.StateSync.Driver)
	}
	switch c.Narration.Driver {
	case "memory":
	case "rabbitmq":
		if c.Narration.RabbitMQ.URL == "" {
			return errors.New("narration.driver=rabbitmq 时必须配置 rabbitmq.url")
		}
	default:
		return fmt.Errorf("未知的叙事投递驱动: %s", c.Narration.Driver)
	}
	return nil
}
