package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"FundAgent/deploy/migrations"
)

// SQLStore 使用 MySQL 存储交易账本，供多实例或托管环境部署。
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore 创建连接池并初始化数据表。
func NewSQLStore(dsn string) (*SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("无法连接到 MySQL: %w", err)
	}

	store := &SQLStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

// initSchema 按文件名顺序执行内嵌的迁移脚本。脚本都写成幂等形式，
// 重复执行是安全的。
func (s *SQLStore) initSchema() error {
	entries, err := fs.Glob(migrations.Files, "*.sql")
	if err != nil {
		return fmt.Errorf("枚举迁移脚本失败: %w", err)
	}
	sort.Strings(entries)

	for _, name := range entries {
		raw, err := migrations.Files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("读取迁移脚本 %s 失败: %w", name, err)
		}
		stmt := strings.TrimRight(strings.TrimSpace(string(raw)), ";")
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("执行迁移脚本 %s 失败: %w", name, err)
		}
	}
	return nil
}

// Append 将交易记录写入 MySQL。
func (s *SQLStore) Append(ctx context.Context, trade Trade) error {
	const stmt = `INSERT INTO fund_trades
        (id, trade_type, token, name, symbol, amount, venue, tx_hash, thesis, traded_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, stmt,
		trade.ID,
		string(trade.Type),
		trade.Token,
		trade.Name,
		trade.Symbol,
		trade.Amount.String(),
		trade.Venue,
		trade.TxHash,
		trade.Thesis,
		trade.Time.Unix(),
	); err != nil {
		return fmt.Errorf("写入交易记录失败: %w", err)
	}
	return nil
}

// All 按时间顺序读取全部交易记录。
func (s *SQLStore) All(ctx context.Context) ([]Trade, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, trade_type, token, name, symbol, amount, venue, tx_hash, thesis, traded_at
        FROM fund_trades ORDER BY traded_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("查询交易记录失败: %w", err)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		var (
			trade    Trade
			kind     string
			amount   string
			tradedAt int64
		)
		if err := rows.Scan(&trade.ID, &kind, &trade.Token, &trade.Name, &trade.Symbol, &amount, &trade.Venue, &trade.TxHash, &trade.Thesis, &tradedAt); err != nil {
			return nil, fmt.Errorf("解析交易记录失败: %w", err)
		}
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("解析交易金额失败: %w", err)
		}
		trade.Type = Type(kind)
		trade.Amount = parsed
		trade.Time = time.Unix(tradedAt, 0).UTC()
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历交易记录失败: %w", err)
	}
	return trades, nil
}

// Count 返回累计交易笔数。
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fund_trades`).Scan(&count); err != nil {
		return 0, fmt.Errorf("统计交易笔数失败: %w", err)
	}
	return count, nil
}

// UpdateNames 修正某个代币历史记录中的名称与符号字段。
func (s *SQLStore) UpdateNames(ctx context.Context, token, name, symbol string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE fund_trades SET name = ?, symbol = ? WHERE token = ?`,
		name, symbol, token,
	); err != nil {
		return fmt.Errorf("修正交易记录失败: %w", err)
	}
	return nil
}

// Close 关闭底层数据库连接。
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
