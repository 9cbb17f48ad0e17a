// Package api 暴露只读状态接口与计划外的手动触发接口。这里的
// 消费方不允许直接改动账本或决策状态。
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"FundAgent/internal/ledger"
	"FundAgent/internal/scheduler"
	"FundAgent/internal/state"
)

// StatusSource 提供当前状态快照。
type StatusSource interface {
	Snapshot(ctx context.Context) state.Snapshot
}

// Server 负责暴露 REST 接口。
type Server struct {
	addr   string
	status StatusSource
	book   *ledger.Ledger
	sched  *scheduler.Scheduler
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, status StatusSource, book *ledger.Ledger, sched *scheduler.Scheduler) *Server {
	return &Server{addr: addr, status: status, book: book, sched: sched}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/trades", s.handleTrades)
	mux.HandleFunc("/api/v1/trigger/discovery", s.triggerHandler("buy-cycle"))
	mux.HandleFunc("/api/v1/trigger/review", s.triggerHandler("sell-cycle"))

	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleStatus 返回状态快照。状态源不可用时降级为明确标注的
// unavailable 响应，而不是抛错。
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if s.status == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	_ = json.NewEncoder(w).Encode(s.status.Snapshot(r.Context()))
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if s.book == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	trades := s.book.Trades()
	if len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	_ = json.NewEncoder(w).Encode(trades)
}

// triggerHandler 在计划之外立即触发一次指定任务。
func (s *Server) triggerHandler(task string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
			return
		}
		if s.sched == nil {
			http.Error(w, "调度器未初始化", http.StatusServiceUnavailable)
			return
		}
		if err := s.sched.Trigger(task); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"triggered": task})
	}
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
