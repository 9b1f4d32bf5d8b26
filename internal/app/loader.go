package app

import (
	"context"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"medquiz-service/internal/domain"
)

const (
	loaderWait     = 2 * time.Millisecond
	loaderCapacity = 100
)

// QuestionFinder is the part of the repository the loader batches onto.
type QuestionFinder interface {
	FindByIDs(ctx context.Context, ids []int) ([]domain.Question, error)
}

// QuestionLoader coalesces concurrent single-question loads into one FindByIDs call.
// Results are not cached between batches; votes and comments change too often.
type QuestionLoader struct {
	loader *dataloader.Loader[int, domain.Question]
}

func NewQuestionLoader(finder QuestionFinder) *QuestionLoader {
	batch := func(ctx context.Context, ids []int) []*dataloader.Result[domain.Question] {
		return batchQuestions(context.WithoutCancel(ctx), finder, ids)
	}
	return &QuestionLoader{
		loader: dataloader.NewBatchedLoader(batch,
			dataloader.WithWait[int, domain.Question](loaderWait),
			dataloader.WithBatchCapacity[int, domain.Question](loaderCapacity),
			dataloader.WithCache[int, domain.Question](&dataloader.NoCache[int, domain.Question]{}),
		),
	}
}

// Load returns the question with id, waiting briefly for other loads to batch with.
func (l *QuestionLoader) Load(ctx context.Context, id int) (domain.Question, error) {
	return l.loader.Load(ctx, id)()
}

// batchQuestions fetches ids in one call and maps the rows back to request order.
func batchQuestions(ctx context.Context, finder QuestionFinder, ids []int) []*dataloader.Result[domain.Question] {
	results := make([]*dataloader.Result[domain.Question], len(ids))
	questions, err := finder.FindByIDs(ctx, ids)
	if err != nil {
		for i := range results {
			results[i] = &dataloader.Result[domain.Question]{Error: err}
		}
		return results
	}

	byID := make(map[int]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	for i, id := range ids {
		if q, ok := byID[id]; ok {
			results[i] = &dataloader.Result[domain.Question]{Data: q}
		} else {
			results[i] = &dataloader.Result[domain.Question]{Error: domain.ErrQuestionNotFound}
		}
	}
	return results
}
