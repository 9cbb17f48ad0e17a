package committee

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"FundAgent/internal/decision"
)

// tally 做加权多数表决。不变式：所有已收集选票的权重之和等于
// totalWeight（弃权票权重为 0，同样计入）。胜出结论的权重占比
// 必须达到投票阈值，否则落回该评估类型的保守默认结论。
func (c *Committee) tally(votes []Vote, token, symbol string, kind decision.Kind) *Result {
	tallies := make(map[decision.Action]float64)
	totalWeight := 0.0
	weightedConfidence := 0.0
	for _, vote := range votes {
		tallies[vote.Action] += vote.Weight
		totalWeight += vote.Weight
		weightedConfidence += vote.Confidence * vote.Weight
	}

	winner := kind.SafeDefault()
	maxWeight := 0.0
	// 平票时取字典序较小的结论，显式且确定，不依赖 map 遍历顺序。
	for _, action := range sortedActions(tallies) {
		weight := tallies[action]
		if weight > maxWeight {
			maxWeight = weight
			winner = action
		}
	}

	final := kind.SafeDefault()
	confidence := 0.0
	if totalWeight > 0 {
		winnerPercent := maxWeight / totalWeight * 100
		if winnerPercent >= c.threshold {
			final = winner
		}
		confidence = weightedConfidence / totalWeight
	}

	transcript := make([]string, 0, len(votes))
	for _, vote := range votes {
		transcript = append(transcript, fmt.Sprintf("%s (%s): %s — %s", vote.Member, vote.Persona, vote.Action, vote.Reasoning))
	}

	return &Result{
		ID:            uuid.NewString(),
		Token:         token,
		Symbol:        symbol,
		Kind:          kind,
		FinalDecision: final,
		Confidence:    confidence,
		Votes:         votes,
		VoteTally:     tallies,
		Deliberation:  strings.Join(transcript, "\n"),
		Time:          time.Now().UTC(),
	}
}

// sortedActions 返回计票表中出现过的结论，按字典序排列。
func sortedActions(tallies map[decision.Action]float64) []decision.Action {
	actions := make([]decision.Action, 0, len(tallies))
	for action := range tallies {
		actions = append(actions, action)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}
