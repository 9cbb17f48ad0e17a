package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// FileStore 把交易记录按行追加到本地 JSON 文件，另用一个独立的
// 计数文件记录累计笔数。记录文件意外丢失时计数文件仍能守住终身
// 交易上限。
type FileStore struct {
	mu        sync.Mutex
	tradeFile string
	countFile string
}

// NewFileStore 创建基于本地文件的账本存储。
func NewFileStore(dataDir string) (*FileStore, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	return &FileStore{
		tradeFile: filepath.Join(dataDir, "trades.jsonl"),
		countFile: filepath.Join(dataDir, "trade-count.txt"),
	}, nil
}

// Append 以追加写的方式记录一笔交易，并同步刷新计数文件。
func (f *FileStore) Append(ctx context.Context, trade Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.tradeFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开账本文件失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("序列化交易记录失败: %w", err)
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入账本文件失败: %w", err)
	}

	count, err := f.readCount()
	if err != nil {
		return err
	}
	return f.writeCount(count + 1)
}

// All 读取全部交易记录，坏行跳过不中断恢复。
func (f *FileStore) All(ctx context.Context) ([]Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readAll()
}

// Count 返回计数文件中的累计交易笔数。
func (f *FileStore) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readCount()
}

// UpdateNames 重写某个代币历史记录中的名称与符号字段。
func (f *FileStore) UpdateNames(ctx context.Context, token, name, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	trades, err := f.readAll()
	if err != nil {
		return err
	}
	changed := false
	for i := range trades {
		if trades[i].Token == token && (trades[i].Name != name || trades[i].Symbol != symbol) {
			trades[i].Name = name
			trades[i].Symbol = symbol
			changed = true
		}
	}
	if !changed {
		return nil
	}

	var builder strings.Builder
	for _, trade := range trades {
		encoded, err := json.Marshal(trade)
		if err != nil {
			return fmt.Errorf("序列化交易记录失败: %w", err)
		}
		builder.Write(encoded)
		builder.WriteByte('\n')
	}
	tmp := f.tradeFile + ".tmp"
	if err := os.WriteFile(tmp, []byte(builder.String()), 0o644); err != nil {
		return fmt.Errorf("重写账本文件失败: %w", err)
	}
	if err := os.Rename(tmp, f.tradeFile); err != nil {
		return fmt.Errorf("替换账本文件失败: %w", err)
	}
	return nil
}

// Close 实现 Store 接口，文件存储无需清理。
func (f *FileStore) Close() error {
	return nil
}

func (f *FileStore) readAll() ([]Trade, error) {
	file, err := os.OpenFile(f.tradeFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("读取账本文件失败: %w", err)
	}
	defer file.Close()

	var trades []Trade
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var trade Trade
		if err := json.Unmarshal([]byte(line), &trade); err != nil {
			continue
		}
		trades = append(trades, trade)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("解析账本文件失败: %w", err)
	}
	return trades, nil
}

func (f *FileStore) readCount() (int, error) {
	raw, err := os.ReadFile(f.countFile)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("读取交易计数失败: %w", err)
	}
	count, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || count < 0 {
		return 0, nil
	}
	return count, nil
}

func (f *FileStore) writeCount(count int) error {
	if err := os.WriteFile(f.countFile, []byte(strconv.Itoa(count)), 0o644); err != nil {
		return fmt.Errorf("写入交易计数失败: %w", err)
	}
	return nil
}
