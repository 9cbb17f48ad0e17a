// Package social 是消息板发帖的薄客户端，只做 I/O 不做决策。
package social

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"FundAgent/internal/errors"
)

// Config 描述消息板服务的接入参数。
type Config struct {
	BaseURL string
	APIKey  string
	Submolt string
	Timeout time.Duration
}

// Client 封装消息板的发帖接口。
type Client struct {
	http    *resty.Client
	submolt string
}

// New 创建发帖客户端。
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New(errors.CodeInvalidArgument, "消息板地址不能为空")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		http.SetAuthToken(cfg.APIKey)
	}
	submolt := cfg.Submolt
	if submolt == "" {
		submolt = "general"
	}
	return &Client{http: http, submolt: submolt}, nil
}

type postRequest struct {
	Submolt string `json:"submolt"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Post 发布一篇帖子。
func (c *Client) Post(ctx context.Context, title, content string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(postRequest{Submolt: c.submolt, Title: title, Content: content}).
		Post("/api/v1/posts")
	if err != nil {
		return errors.Wrap(errors.CodeSyncFailure, err, "发帖请求失败")
	}
	if resp.IsError() {
		return errors.New(errors.CodeSyncFailure, "消息板返回错误状态: "+resp.Status())
	}
	return nil
}

// ParseReply 从模型回复里解析 TITLE:/CONTENT: 格式的帖子。缺少
// 标记时整段回复作为正文，标题退回默认值。
func ParseReply(reply, fallbackTitle string, maxChars int) (title, content string) {
	title = fallbackTitle
	content = strings.TrimSpace(reply)

	for _, line := range strings.Split(reply, "\n") {
		trimmed := strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(trimmed, "TITLE:"); ok {
			title = strings.TrimSpace(after)
		}
		if after, ok := strings.CutPrefix(trimmed, "CONTENT:"); ok {
			rest := strings.TrimSpace(after)
			if idx := strings.Index(reply, "CONTENT:"); idx >= 0 {
				rest = strings.TrimSpace(reply[idx+len("CONTENT:"):])
			}
			content = rest
		}
	}

	if maxChars > 0 && len(content) > maxChars {
		content = content[:maxChars]
	}
	if title == "" {
		title = fallbackTitle
	}
	return title, content
}
