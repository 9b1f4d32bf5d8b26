package memory

import (
	"context"
	"sync"

	"medquiz-service/internal/domain"
)

// ReportQueue keeps reports in process memory, newest first.
type ReportQueue struct {
	mu      sync.Mutex
	reports []domain.Report
	max     int
}

// NewReportQueue keeps at most max reports; older ones are dropped.
func NewReportQueue(max int) *ReportQueue {
	return &ReportQueue{max: max}
}

func (q *ReportQueue) Push(_ context.Context, r domain.Report) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reports = append([]domain.Report{r}, q.reports...)
	if q.max > 0 && len(q.reports) > q.max {
		q.reports = q.reports[:q.max]
	}
	return nil
}

func (q *ReportQueue) List(_ context.Context, limit int) ([]domain.Report, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if limit <= 0 || limit > len(q.reports) {
		limit = len(q.reports)
	}
	out := make([]domain.Report, limit)
	copy(out, q.reports[:limit])
	return out, nil
}
