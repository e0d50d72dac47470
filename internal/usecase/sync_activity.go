package usecase

import (
	"context"
	"sync"
	"time"
)

type SyncOutcome string

const (
	SyncOutcomeOK      SyncOutcome = "ok"
	SyncOutcomeSkipped SyncOutcome = "skipped"
	SyncOutcomeFailed  SyncOutcome = "failed"
)

// ダッシュボードに出す同期履歴の1行
type SyncActivity struct {
	At      time.Time       `json:"at"`
	OrderID string          `json:"order_id"`
	Source  ReconcileSource `json:"source"`
	Result  SyncOutcome     `json:"result"`
	Message string          `json:"message"`
}

type SyncActivityLog interface {
	Append(ctx context.Context, a SyncActivity) error
	//新しい順
	Recent(ctx context.Context, n int) ([]SyncActivity, error)
}

// プロセス内のリングバッファ
type MemorySyncActivityLog struct {
	mu   sync.Mutex
	buf  []SyncActivity
	next int
	full bool
}

func NewMemorySyncActivityLog(size int) *MemorySyncActivityLog {
	if size <= 0 {
		size = 50
	}
	return &MemorySyncActivityLog{buf: make([]SyncActivity, size)}
}

func (l *MemorySyncActivityLog) Append(_ context.Context, a SyncActivity) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf[l.next] = a
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.full = true
	}
	return nil
}

func (l *MemorySyncActivityLog) Recent(_ context.Context, n int) ([]SyncActivity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.next
	if l.full {
		count = len(l.buf)
	}
	if n <= 0 || n > count {
		n = count
	}

	out := make([]SyncActivity, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.next - 1 - i + len(l.buf)) % len(l.buf)
		out = append(out, l.buf[idx])
	}
	return out, nil
}
