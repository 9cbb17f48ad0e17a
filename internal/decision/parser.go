package decision

import (
	"encoding/json"
	"strings"

	xerrors "FundAgent/internal/errors"
)

// heuristicConfidence 是关键词回退策略给出的保守置信度。
const heuristicConfidence = 0.5

const maxHeuristicReasoning = 100

type rawDecision struct {
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Thesis     string  `json:"thesis"`
}

// ParseStrict 从自由文本回复中提取第一个完整的 JSON 对象并解析为决策。
// 找不到 JSON、JSON 不合法、或结论对该评估类型不合法时返回
// CodeParseFailure，让调用方显式选择回退策略。
func ParseStrict(reply string, kind Kind) (Decision, error) {
	payload, ok := firstJSONObject(reply)
	if !ok {
		return Decision{}, xerrors.New(xerrors.CodeParseFailure, "回复中找不到 JSON 对象")
	}

	var raw rawDecision
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Decision{}, xerrors.Wrap(xerrors.CodeParseFailure, err, "JSON 决策解析失败")
	}

	action := Action(strings.ToUpper(strings.TrimSpace(raw.Decision)))
	if !kind.Allows(action) {
		return Decision{}, xerrors.New(xerrors.CodeParseFailure, "结论对该评估类型不合法",
			xerrors.WithMetadata("action", string(action)))
	}

	reasoning := raw.Reasoning
	if reasoning == "" {
		reasoning = raw.Thesis
	}
	if reasoning == "" {
		reasoning = "No reasoning provided"
	}

	confidence := raw.Confidence
	if confidence == 0 {
		confidence = heuristicConfidence
	}

	return Decision{
		Action:     action,
		Confidence: clampConfidence(confidence),
		Reasoning:  reasoning,
	}, nil
}

// ParseHeuristic 是显式的二级策略：在回复里找该评估类型的激进关键词，
// 找到则采用，否则落回保守默认结论。置信度一律取保守值。
func ParseHeuristic(reply string, kind Kind) Decision {
	upper := strings.ToUpper(reply)

	action := kind.SafeDefault()
	aggressive := kind.Legal()[0]
	if strings.Contains(upper, string(aggressive)) {
		action = aggressive
	}

	reasoning := strings.TrimSpace(reply)
	if len(reasoning) > maxHeuristicReasoning {
		reasoning = reasoning[:maxHeuristicReasoning]
	}

	return Decision{
		Action:     action,
		Confidence: heuristicConfidence,
		Reasoning:  reasoning,
	}
}

// Parse 先走严格解析，失败后落到关键词回退。
func Parse(reply string, kind Kind) Decision {
	if parsed, err := ParseStrict(reply, kind); err == nil {
		return parsed
	}
	return ParseHeuristic(reply, kind)
}

// firstJSONObject 返回文本中第一个括号配平的 JSON 对象。
// 手写扫描而不是正则，以便正确处理字符串里的花括号。
func firstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
