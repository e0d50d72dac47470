package redisx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"florist/internal/usecase"
)

// 複数プロセスで共有する同期履歴: LPUSHして先頭size件だけ残す
const KeySyncActivity = "payment_sync:activity"

type SyncActivityLog struct {
	rdb  redis.Cmdable
	key  string
	size int64
}

func NewSyncActivityLog(rdb redis.Cmdable, size int) *SyncActivityLog {
	if size <= 0 {
		size = 50
	}
	return &SyncActivityLog{rdb: rdb, key: KeySyncActivity, size: int64(size)}
}

func (l *SyncActivityLog) Append(ctx context.Context, a usecase.SyncActivity) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}
	_, err = l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, l.key, b)
		p.LTrim(ctx, l.key, 0, l.size-1)
		return nil
	})
	return err
}

func (l *SyncActivityLog) Recent(ctx context.Context, n int) ([]usecase.SyncActivity, error) {
	stop := l.size - 1
	if n > 0 && int64(n) <= l.size {
		stop = int64(n) - 1
	}
	raw, err := l.rdb.LRange(ctx, l.key, 0, stop).Result()
	if err != nil {
		return nil, err
	}

	out := make([]usecase.SyncActivity, 0, len(raw))
	for _, s := range raw {
		var a usecase.SyncActivity
		//壊れた行は飛ばす
		if err := json.Unmarshal([]byte(s), &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
