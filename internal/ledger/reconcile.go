package ledger

import (
	"context"
	"log/slog"

	"FundAgent/pkg/logger"
)

// MetadataLookup 按代币地址查询链上名称与符号。
type MetadataLookup func(ctx context.Context, token string) (name, symbol string, err error)

// RepairNames 用链上元数据修正历史记录中被污染或缺失的代币名称。
// 启动时执行一次，幂等：名称已干净的代币不会被改写。单个代币查询
// 失败只记日志，不影响其余代币的修复。
func (l *Ledger) RepairNames(ctx context.Context, lookup MetadataLookup) int {
	log := logger.Named("ledger")

	suspect := make(map[string]bool)
	l.mu.RLock()
	for _, trade := range l.trades {
		if _, ok := SanitizeName(trade.Name); !ok {
			suspect[trade.Token] = true
		}
	}
	l.mu.RUnlock()

	repaired := 0
	for token := range suspect {
		name, symbol, err := lookup(ctx, token)
		if err != nil {
			log.Warn("链上元数据查询失败，跳过名称修复",
				slog.String("token", token), slog.String("error", err.Error()))
			continue
		}
		cleaned, ok := SanitizeName(name)
		if !ok {
			cleaned = FallbackName(symbol, token)
		}
		if err := l.rewriteNames(ctx, token, cleaned, symbol); err != nil {
			log.Warn("账本名称修复失败",
				slog.String("token", token), slog.String("error", err.Error()))
			continue
		}
		repaired++
	}
	if repaired > 0 {
		log.Info("启动名称修复完成", slog.Int("repaired", repaired))
	}
	return repaired
}

func (l *Ledger) rewriteNames(ctx context.Context, token, name, symbol string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.UpdateNames(ctx, token, name, symbol); err != nil {
		return err
	}
	for i := range l.trades {
		if l.trades[i].Token == token {
			l.trades[i].Name = name
			l.trades[i].Symbol = symbol
		}
	}
	return nil
}
