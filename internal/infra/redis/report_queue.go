package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"medquiz-service/internal/domain"
)

const reportsKey = "reports"

// ReportQueue keeps reports in a capped Redis list, newest first.
type ReportQueue struct {
	client *redis.Client
	max    int64
}

func NewReportQueue(client *redis.Client, max int64) *ReportQueue {
	return &ReportQueue{client: client, max: max}
}

func (q *ReportQueue) Push(ctx context.Context, r domain.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, reportsKey, data)
	if q.max > 0 {
		pipe.LTrim(ctx, reportsKey, 0, q.max-1)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (q *ReportQueue) List(ctx context.Context, limit int) ([]domain.Report, error) {
	raw, err := q.client.LRange(ctx, reportsKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	reports := make([]domain.Report, 0, len(raw))
	for _, item := range raw {
		var r domain.Report
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}
