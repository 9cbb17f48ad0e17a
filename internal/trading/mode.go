package trading

import (
	"github.com/shopspring/decimal"

	"FundAgent/internal/state"
	"FundAgent/internal/strategy"
)

// ModeFor 按净投入额推导人格模式。净投入越高说明基金越敢于建仓，
// 发帖口吻随之切换；净投入为负说明在亏损中清仓离场，进入危机口吻。
func ModeFor(netInvested decimal.Decimal, p strategy.Personality) state.Mode {
	if netInvested.IsNegative() {
		return state.ModeCrisis
	}
	if bullMin, err := decimal.NewFromString(p.BullMinInvested); err == nil && netInvested.GreaterThanOrEqual(bullMin) {
		return state.ModeBull
	}
	if neutralMin, err := decimal.NewFromString(p.NeutralMinInvested); err == nil && netInvested.GreaterThanOrEqual(neutralMin) {
		return state.ModeNeutral
	}
	return state.ModeBear
}
