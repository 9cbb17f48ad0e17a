package decision

// Action 表示一次评估可能得出的操作。
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
	ActionSkip Action = "SKIP"
)

// Kind 区分买入评估与持仓复盘两类评估。两类评估各自只允许
// 两种合法结论，并各自有一个保守的默认结论。
type Kind string

const (
	KindBuy  Kind = "BUY_EVAL"
	KindSell Kind = "SELL_EVAL"
)

// Legal 返回该评估类型允许的结论集合，顺序固定。
func (k Kind) Legal() []Action {
	if k == KindSell {
		return []Action{ActionSell, ActionHold}
	}
	return []Action{ActionBuy, ActionSkip}
}

// SafeDefault 返回该评估类型的保守默认结论。
func (k Kind) SafeDefault() Action {
	if k == KindSell {
		return ActionHold
	}
	return ActionSkip
}

// Allows 判断某个结论对该评估类型是否合法。
func (k Kind) Allows(action Action) bool {
	for _, legal := range k.Legal() {
		if legal == action {
			return true
		}
	}
	return false
}

// Decision 是一次评估的结构化结果。每次评估调用都会新建，
// 只会嵌入到投票或交易记录中，不会单独持久化。
type Decision struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
