// Package state 维护编排器的状态快照：本地持久化先行，远端同步
// 尽力而为。仪表盘与发帖方只读这里的快照，不触碰账本。
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Mode 是由净投入推导出的人格模式，影响发帖口吻。
type Mode string

const (
	ModeBull    Mode = "BULL"
	ModeNeutral Mode = "NEUTRAL"
	ModeBear    Mode = "BEAR"
	ModeCrisis  Mode = "CRISIS"
)

// HoldingSummary 是快照中的单个持仓摘要。
type HoldingSummary struct {
	Token       string `json:"token"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	NetInvested string `json:"net_invested"`
}

// Snapshot 是对外发布的编排器状态文档。
type Snapshot struct {
	Wallet         string           `json:"wallet"`
	Balance        string           `json:"balance"`
	Mode           Mode             `json:"mode"`
	TradeCount     int              `json:"trade_count"`
	MaxTotalTrades int              `json:"max_total_trades"`
	TotalSpent     string           `json:"total_spent"`
	NetInvested    string           `json:"net_invested"`
	Holdings       []HoldingSummary `json:"holdings"`
	CommentaryOnly bool             `json:"commentary_only"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// RemoteStore 抽象远端文档存储的 upsert 语义。
type RemoteStore interface {
	Put(ctx context.Context, snapshot Snapshot) error
	Close() error
}

// Manager 串联本地落盘与远端同步。本地写失败时远端同步不会执行，
// 丢一次同步可以下个周期补救，丢执行记录不行。
type Manager struct {
	mu        sync.RWMutex
	stateFile string
	remote    RemoteStore
	current   Snapshot
}

// NewManager 创建状态管理器，remote 为 nil 时只做本地持久化。
func NewManager(dataDir string, remote RemoteStore) (*Manager, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	m := &Manager{
		stateFile: filepath.Join(dataDir, "state.json"),
		remote:    remote,
	}
	m.loadFromDisk()
	return m, nil
}

// Publish 更新快照并写入本地文件。
func (m *Manager) Publish(snapshot Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot.UpdatedAt = time.Now().UTC()
	encoded, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化状态快照失败: %w", err)
	}
	tmp := m.stateFile + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("写入状态快照失败: %w", err)
	}
	if err := os.Rename(tmp, m.stateFile); err != nil {
		return fmt.Errorf("替换状态快照失败: %w", err)
	}
	m.current = snapshot
	return nil
}

// Sync 把当前快照推到远端。没有远端或快照为空时直接返回。
func (m *Manager) Sync(ctx context.Context) error {
	m.mu.RLock()
	remote := m.remote
	snapshot := m.current
	m.mu.RUnlock()

	if remote == nil || snapshot.UpdatedAt.IsZero() {
		return nil
	}
	return remote.Put(ctx, snapshot)
}

// Current 返回最近发布的快照，第二个返回值为假表示尚未发布过。
func (m *Manager) Current() (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, !m.current.UpdatedAt.IsZero()
}

// Close 释放远端连接。
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.remote != nil {
		return m.remote.Close()
	}
	return nil
}

func (m *Manager) loadFromDisk() {
	raw, err := os.ReadFile(m.stateFile)
	if err != nil {
		return
	}
	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return
	}
	m.current = snapshot
}
