package app

import (
	"context"

	"medquiz-service/internal/domain"
)

// PoolLoaderFunc adapts a function to the loader interfaces of the pool caches.
type PoolLoaderFunc func(ctx context.Context, semester int) ([]domain.Question, error)

func (f PoolLoaderFunc) LoadPool(ctx context.Context, semester int) ([]domain.Question, error) {
	return f(ctx, semester)
}

// RepositoryPoolLoader loads every question of a semester from repo.
func RepositoryPoolLoader(repo QuestionRepository) PoolLoaderFunc {
	return func(ctx context.Context, semester int) ([]domain.Question, error) {
		return repo.FindQuestions(ctx, domain.QuestionFilter{Semester: semester})
	}
}
