// Package discovery 负责寻找候选代币：优先行情接口，其次页面抓取，
// 最后退回基金自己的代币。
package discovery

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"

	"FundAgent/internal/errors"
	"FundAgent/internal/ledger"
	"FundAgent/pkg/logger"
)

// Candidate 是一个待评估的代币。
type Candidate struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	Source  string `json:"source"`
}

// Config 描述发现服务的数据源。
type Config struct {
	ListURL   string
	ScrapeURL string
	OwnToken  string
	OwnSymbol string
	Limit     int
	Timeout   time.Duration
}

// Discoverer 按三级数据源查找候选代币。
type Discoverer struct {
	client    *resty.Client
	listURL   string
	scrapeURL string
	ownToken  string
	ownSymbol string
	limit     int
	log       *slog.Logger
}

var addressPattern = regexp.MustCompile(`/tokens/(0x[a-fA-F0-9]{40})`)

// New 创建发现服务。
func New(cfg Config) *Discoverer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 10
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &Discoverer{
		client:    client,
		listURL:   cfg.ListURL,
		scrapeURL: cfg.ScrapeURL,
		ownToken:  cfg.OwnToken,
		ownSymbol: cfg.OwnSymbol,
		limit:     limit,
		log:       logger.Named("discovery"),
	}
}

// Discover 返回一批候选代币。行情接口失败时降级到页面抓取，再
// 失败就只剩基金自己的代币可看。
func (d *Discoverer) Discover(ctx context.Context) ([]Candidate, error) {
	if d.listURL != "" {
		candidates, err := d.fromListAPI(ctx)
		if err == nil && len(candidates) > 0 {
			return candidates, nil
		}
		if err != nil {
			d.log.Warn("行情接口不可用，降级到页面抓取", slog.String("error", err.Error()))
		}
	}

	if d.scrapeURL != "" {
		candidates, err := d.fromScrape(ctx)
		if err == nil && len(candidates) > 0 {
			return candidates, nil
		}
		if err != nil {
			d.log.Warn("页面抓取失败，退回自有代币", slog.String("error", err.Error()))
		}
	}

	if d.ownToken != "" {
		return []Candidate{{
			Address: d.ownToken,
			Symbol:  d.ownSymbol,
			Name:    ledger.FallbackName(d.ownSymbol, d.ownToken),
			Source:  "self",
		}}, nil
	}
	return nil, errors.New(errors.CodeNotFound, "没有可用的候选代币来源")
}

type listResponse struct {
	Tokens []struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"tokens"`
}

func (d *Discoverer) fromListAPI(ctx context.Context) ([]Candidate, error) {
	resp, err := d.client.R().SetContext(ctx).Get(d.listURL)
	if err != nil {
		return nil, errors.Wrap(errors.CodeSyncFailure, err, "请求行情接口失败")
	}
	if resp.IsError() {
		return nil, errors.New(errors.CodeSyncFailure, "行情接口返回错误状态: "+resp.Status())
	}

	var payload listResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, errors.Wrap(errors.CodeParseFailure, err, "解析行情接口响应失败")
	}

	candidates := make([]Candidate, 0, d.limit)
	for _, token := range payload.Tokens {
		if token.Address == "" {
			continue
		}
		name, ok := ledger.SanitizeName(token.Name)
		if !ok {
			name = ledger.FallbackName(token.Symbol, token.Address)
		}
		candidates = append(candidates, Candidate{
			Address: token.Address,
			Name:    name,
			Symbol:  token.Symbol,
			Source:  "api",
		})
		if len(candidates) >= d.limit {
			break
		}
	}
	return candidates, nil
}

// fromScrape 从交易页面的 HTML 里提取代币地址。页面上没有可靠的
// 名称信息，显示名一律用地址缩写，等账本的启动修复从链上补全。
func (d *Discoverer) fromScrape(ctx context.Context) ([]Candidate, error) {
	resp, err := d.client.R().SetContext(ctx).Get(d.scrapeURL)
	if err != nil {
		return nil, errors.Wrap(errors.CodeSyncFailure, err, "抓取交易页面失败")
	}
	if resp.IsError() {
		return nil, errors.New(errors.CodeSyncFailure, "交易页面返回错误状态: "+resp.Status())
	}

	matches := addressPattern.FindAllStringSubmatch(string(resp.Body()), -1)
	seen := make(map[string]bool)
	candidates := make([]Candidate, 0, d.limit)
	for _, match := range matches {
		address := match[1]
		if seen[address] {
			continue
		}
		seen[address] = true
		candidates = append(candidates, Candidate{
			Address: address,
			Name:    ledger.FallbackName("", address),
			Source:  "scrape",
		})
		if len(candidates) >= d.limit {
			break
		}
	}
	return candidates, nil
}
