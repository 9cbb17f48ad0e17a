package ledger

import (
	"regexp"
	"strings"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)

	// 页面抓取经常把前端框架的脚本片段当成代币名带回来，
	// 出现这些痕迹的名称一律拒收。
	scrapeArtifacts = []string{"__next_f", "self.", "push(["}
)

const (
	minNameLength = 2
	maxNameLength = 50
)

// SanitizeName 清洗外部来源的代币名称。剥掉 HTML 标签、压缩空白，
// 拒绝带脚本痕迹或长度越界的名称。第二个返回值为假表示名称不可
// 用，调用方应回退到符号或地址缩写。
func SanitizeName(raw string) (string, bool) {
	cleaned := htmlTagPattern.ReplaceAllString(raw, "")
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	for _, artifact := range scrapeArtifacts {
		if strings.Contains(cleaned, artifact) {
			return "", false
		}
	}
	if len(cleaned) < minNameLength || len(cleaned) > maxNameLength {
		return "", false
	}
	return cleaned, true
}

// FallbackName 在名称不可用时给出确定的替代显示名。
func FallbackName(symbol, token string) string {
	if symbol != "" {
		return symbol
	}
	if len(token) > 10 {
		return token[:10]
	}
	return token
}
