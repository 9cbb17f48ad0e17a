package trading

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"FundAgent/internal/errors"
	"FundAgent/internal/llm"
	"FundAgent/internal/narration"
	"FundAgent/internal/social"
	"FundAgent/internal/state"
	"FundAgent/internal/strategy"
	"FundAgent/pkg/logger"
)

const defaultPostPrompt = `You are the public voice of an autonomous on-chain fund.
Current mode: {mode}
Portfolio: {portfolio}
Trades so far: {trades}

Write a short post for the fund's followers about how the portfolio is doing.
Reply in this exact format:
TITLE: <one line title>
CONTENT: <the post body>`

// Poster 驱动发帖周期：先清叙事积压，没有积压再让模型写一篇
// 组合近况。发帖失败只记日志，交易回路不受影响。
type Poster struct {
	client      *social.Client
	model       llm.Client
	pending     *narration.MemorySink
	personality strategy.Personality
	prompts     strategy.Prompts
	manager     *state.Manager
	log         *slog.Logger
}

// NewPoster 创建发帖器。
func NewPoster(client *social.Client, model llm.Client, pending *narration.MemorySink,
	cfg strategy.Config, manager *state.Manager) (*Poster, error) {
	if client == nil || pending == nil {
		return nil, errors.New(errors.CodeInitializationFailure, "发帖器依赖不完整")
	}
	return &Poster{
		client:      client,
		model:       model,
		pending:     pending,
		personality: cfg.Personality,
		prompts:     cfg.Prompts,
		manager:     manager,
		log:         logger.Named("poster"),
	}, nil
}

// Announce 发布启动公告。
func (p *Poster) Announce(ctx context.Context, fundName string) error {
	return p.client.Post(ctx,
		fmt.Sprintf("%s is live", fundName),
		fmt.Sprintf("%s is back online and watching the market.", fundName))
}

// RunPostCycle 执行一轮发帖。
func (p *Poster) RunPostCycle(ctx context.Context) {
	if event, ok := p.pending.Next(); ok {
		if err := p.client.Post(ctx, event.Title, p.capContent(event.Body)); err != nil {
			p.log.Warn("叙事帖子发布失败", slog.String("event", event.ID), slog.String("error", err.Error()))
			// 发失败的事件放回队尾，下个周期再试。
			_ = p.pending.Publish(ctx, event)
		}
		return
	}

	if p.model == nil {
		return
	}
	title, content, err := p.generatePost(ctx)
	if err != nil {
		p.log.Warn("生成组合近况失败", slog.String("error", err.Error()))
		return
	}
	if err := p.client.Post(ctx, title, content); err != nil {
		p.log.Warn("组合近况发布失败", slog.String("error", err.Error()))
	}
}

func (p *Poster) generatePost(ctx context.Context) (string, string, error) {
	template := p.prompts.PostGeneration
	if template == "" {
		template = defaultPostPrompt
	}

	mode := state.ModeNeutral
	portfolio := "empty"
	trades := "0"
	if p.manager != nil {
		if snapshot, ok := p.manager.Current(); ok {
			mode = snapshot.Mode
			trades = fmt.Sprintf("%d/%d", snapshot.TradeCount, snapshot.MaxTotalTrades)
			if len(snapshot.Holdings) > 0 {
				parts := make([]string, 0, len(snapshot.Holdings))
				for _, h := range snapshot.Holdings {
					parts = append(parts, fmt.Sprintf("%s (net %s)", h.Symbol, h.NetInvested))
				}
				portfolio = strings.Join(parts, ", ")
			}
		}
	}

	prompt := strings.NewReplacer(
		"{mode}", string(mode),
		"{portfolio}", portfolio,
		"{trades}", trades,
	).Replace(template)

	reply, err := p.model.Complete(ctx, llm.Request{Prompt: prompt})
	if err != nil {
		return "", "", err
	}
	title, content := social.ParseReply(reply, "Fund update", p.personality.ContentMaxChars)
	return title, content, nil
}

func (p *Poster) capContent(content string) string {
	if p.personality.ContentMaxChars > 0 && len(content) > p.personality.ContentMaxChars {
		return content[:p.personality.ContentMaxChars]
	}
	return content
}
