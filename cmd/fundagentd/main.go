package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"FundAgent/internal/api"
	"FundAgent/internal/chain"
	"FundAgent/internal/committee"
	"FundAgent/internal/config"
	"FundAgent/internal/decision"
	"FundAgent/internal/discovery"
	"FundAgent/internal/ledger"
	"FundAgent/internal/llm"
	"FundAgent/internal/llm/anthropic"
	"FundAgent/internal/llm/openai"
	"FundAgent/internal/narration"
	"FundAgent/internal/scheduler"
	"FundAgent/internal/social"
	"FundAgent/internal/state"
	"FundAgent/internal/strategy"
	"FundAgent/internal/trading"
	"FundAgent/internal/venue"
	"FundAgent/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fundagentd 启动失败:", err)
		os.Exit(1)
	}
}

func run() error {
	// .env 仅用于本地开发，缺失不算错误。
	_ = godotenv.Load()

	defaultPath := os.Getenv("FUNDAGENT_CONFIG")
	if defaultPath == "" {
		defaultPath = "configs/config.json"
	}
	configPath := flag.String("config", defaultPath, "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Outputs: cfg.Logging.Outputs,
		Audit: logger.AuditConfig{
			Enabled: cfg.Logging.AuditEnabled,
			Path:    cfg.Logging.AuditPath,
		},
	}); err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.L()

	strat, err := strategy.Load(cfg.Runtime.StrategyPath)
	if err != nil {
		return err
	}
	log.Info("策略已加载",
		slog.String("name", strat.Name),
		slog.Bool("committee", strat.Committee.Enabled),
		slog.Int("max_total_trades", strat.Trading.MaxTotalTrades))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model, err := buildModel(cfg.LLM)
	if err != nil {
		return err
	}

	wallet, err := chain.Dial(ctx, chain.Config{
		RPCURL:         cfg.Chain.RPCURL,
		PrivateKeyHex:  cfg.Chain.ResolvePrivateKey(),
		ConfirmTimeout: cfg.Chain.ConfirmTimeout(),
	})
	if err != nil {
		return err
	}
	defer wallet.Close()
	log.Info("链上钱包就绪",
		slog.String("address", wallet.Address().Hex()),
		slog.String("chain_id", wallet.ChainID().String()))

	curve, err := venue.NewCurve(wallet,
		common.HexToAddress(cfg.Chain.CurveRouterAddress), strat.Risk.SlippageCurvePercent)
	if err != nil {
		return err
	}
	dex, err := venue.NewDEX(wallet,
		common.HexToAddress(cfg.Chain.DEXRouterAddress),
		common.HexToAddress(cfg.Chain.WrappedNativeAddress), strat.Risk.SlippageDexPercent)
	if err != nil {
		return err
	}
	if err := dex.VerifyWrappedNative(ctx); err != nil {
		// 核对失败沿用配置地址，第一笔 DEX 交易自然会暴露真问题。
		log.Warn("包装原生币地址核对失败", slog.String("error", err.Error()))
	}

	book, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer book.Close()
	book.RepairNames(ctx, func(ctx context.Context, token string) (string, string, error) {
		return wallet.TokenMetadata(ctx, common.HexToAddress(token))
	})

	manager, err := buildStateManager(ctx, cfg)
	if err != nil {
		return err
	}
	defer manager.Close()

	pending := narration.NewMemorySink(0)
	sinks := []narration.Sink{pending}
	if cfg.Narration.Driver == "rabbitmq" {
		queue, err := narration.NewRabbitMQSink(narration.RabbitMQConfig{
			URL:     cfg.Narration.RabbitMQ.URL,
			Queue:   cfg.Narration.RabbitMQ.Queue,
			Durable: cfg.Narration.RabbitMQ.Durable,
		})
		if err != nil {
			return err
		}
		defer queue.Close()
		sinks = append(sinks, queue)
	}
	narrator := narration.NewFanout(sinks...)

	board, err := buildCommittee(cfg, strat, model)
	if err != nil {
		return err
	}

	executor, err := trading.NewExecutor(curve, dex)
	if err != nil {
		return err
	}

	orch, err := trading.NewOrchestrator(trading.Deps{
		Strategy:  strat,
		FundToken: cfg.Chain.FundTokenAddress,
		Committee: board,
		Router:    executor,
		Ledger:    book,
		Discoverer: discovery.New(discovery.Config{
			ListURL:   cfg.Discovery.ListURL,
			ScrapeURL: cfg.Discovery.ScrapeURL,
			OwnToken:  cfg.Chain.FundTokenAddress,
			Limit:     cfg.Discovery.Limit,
			Timeout:   cfg.Discovery.Timeout(),
		}),
		Bank:     wallet,
		Narrator: narrator,
		State:    manager,
	})
	if err != nil {
		return err
	}

	sched := scheduler.New()
	if err := sched.Every("buy-cycle", strat.Trading.BuyInterval(), orch.RunBuyCycle); err != nil {
		return err
	}
	if err := sched.Every("sell-cycle", strat.Trading.SellInterval(), orch.RunSellCycle); err != nil {
		return err
	}
	if err := sched.Every("sync-cycle", cfg.StateSync.Interval(), orch.RunSyncCycle); err != nil {
		return err
	}

	if cfg.Social.Enabled {
		client, err := social.New(social.Config{
			BaseURL: cfg.Social.BaseURL,
			APIKey:  strings.TrimSpace(os.Getenv(cfg.Social.APIKeyEnv)),
			Submolt: cfg.Social.Submolt,
		})
		if err != nil {
			return err
		}
		poster, err := trading.NewPoster(client, model, pending, strat, manager)
		if err != nil {
			return err
		}
		if err := sched.Every("post-cycle", strat.Personality.PostInterval(), poster.RunPostCycle); err != nil {
			return err
		}
		if err := poster.Announce(ctx, strat.Name); err != nil {
			log.Warn("启动公告发布失败", slog.String("error", err.Error()))
		}
	}

	// 启动前先发布一次状态快照，仪表盘不用等第一个同步周期。
	orch.RunSyncCycle(ctx)

	sched.Start(ctx)
	defer sched.Stop()

	server := api.NewServer(cfg.Server.Address, orch, book, sched)
	log.Info("状态接口已启动", slog.String("address", cfg.Server.Address))
	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("收到退出信号，正在关闭")
	return nil
}

// buildModel 按配置选择推理服务提供方。
func buildModel(cfg config.LLMConfig) (llm.Client, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewClient(anthropic.Config{
			APIKey:  cfg.Anthropic.ResolveAPIKey(),
			BaseURL: cfg.Anthropic.BaseURL,
			Model:   cfg.Anthropic.Model,
			Timeout: cfg.Anthropic.Timeout(),
		})
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:  cfg.OpenAI.ResolveAPIKey(),
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Timeout: cfg.OpenAI.Timeout(),
		})
	default:
		return nil, fmt.Errorf("未知的推理服务提供方: %s", cfg.Provider)
	}
}

// openLedger 按配置选择台账存储驱动。
func openLedger(ctx context.Context, cfg *config.Config) (*ledger.Ledger, error) {
	var (
		store ledger.Store
		err   error
	)
	switch cfg.Ledger.Driver {
	case "mysql":
		store, err = ledger.NewSQLStore(cfg.Ledger.DSN)
	default:
		store, err = ledger.NewFileStore(cfg.Runtime.DataDir)
	}
	if err != nil {
		return nil, err
	}
	return ledger.Open(ctx, store)
}

// buildStateManager 组装本地快照与可选的 Redis 远端同步。
func buildStateManager(ctx context.Context, cfg *config.Config) (*state.Manager, error) {
	var remote state.RemoteStore
	if cfg.StateSync.Driver == "redis" {
		store, err := state.NewRedisStore(ctx, state.RedisConfig{
			Address:  cfg.StateSync.Redis.Address,
			Password: cfg.StateSync.Redis.Password,
			DB:       cfg.StateSync.Redis.DB,
			Key:      cfg.StateSync.Redis.Key,
		})
		if err != nil {
			return nil, err
		}
		remote = store
	}
	return state.NewManager(cfg.Runtime.DataDir, remote)
}

// buildCommittee 组装决策层：委员会模式或单人模式。soul 文件为
// 没有自带系统提示词的成员提供统一的基底人格。
func buildCommittee(cfg *config.Config, strat strategy.Config, model llm.Client) (*committee.Committee, error) {
	evaluator, err := decision.NewEvaluator(model, decision.WithTimeout(providerTimeout(cfg.LLM)))
	if err != nil {
		return nil, err
	}

	soul := ""
	if cfg.LLM.SoulPath != "" {
		raw, err := os.ReadFile(cfg.LLM.SoulPath)
		if err != nil {
			return nil, fmt.Errorf("读取 soul 文件失败: %w", err)
		}
		soul = strings.TrimSpace(string(raw))
	}

	members := []strategy.Member{strat.SoloMember()}
	threshold := 50.0
	if strat.Committee.Enabled {
		members = strat.Committee.Members
		threshold = strat.Committee.VotingThreshold
	}
	if soul != "" {
		for i := range members {
			if members[i].SystemPrompt == "" {
				members[i].SystemPrompt = soul
			}
		}
	}
	return committee.New(members, threshold, evaluator, strat.Prompts)
}

func providerTimeout(cfg config.LLMConfig) time.Duration {
	switch cfg.Provider {
	case "openai":
		return cfg.OpenAI.Timeout()
	default:
		return cfg.Anthropic.Timeout()
	}
}
