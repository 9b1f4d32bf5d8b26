package quiz

import (
	"math/rand"
	"time"

	"medquiz-service/internal/domain"
)

// Selection is the outcome of SelectQuestionIDs. Exactly one of IDs or Settings is meaningful:
// sampled quiz types yield IDs, all other types pass the settings through unchanged.
type Selection struct {
	IDs      []int
	Settings *Settings
}

// Sampled reports whether the selection carries sampled ids.
func (s Selection) Sampled() bool {
	return s.Settings == nil
}

// NewRand returns a time-seeded source for SelectQuestionIDs.
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// SelectQuestionIDs picks the ids to quiz on from settings.Questions. For random quizzes it
// samples min(n, pool) distinct questions; specialer quizzes first keep only questions sharing
// a specialty with the selection.
func SelectQuestionIDs(settings Settings, rnd *rand.Rand) Selection {
	switch settings.Type {
	case domain.QuizRandom, domain.QuizSpecialer:
	default:
		passthrough := settings
		return Selection{Settings: &passthrough}
	}

	pool := uniqueByID(settings.Questions)
	if settings.Type == domain.QuizSpecialer {
		pool = filterBySpecialty(pool, settings.Specialties)
	}

	picked := sample(pool, settings.N, rnd)
	ids := make([]int, len(picked))
	for i, q := range picked {
		ids[i] = q.ID
	}
	return Selection{IDs: ids}
}

func uniqueByID(questions []domain.Question) []domain.Question {
	seen := make(map[int]struct{}, len(questions))
	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if _, ok := seen[q.ID]; ok {
			continue
		}
		seen[q.ID] = struct{}{}
		out = append(out, q)
	}
	return out
}

func filterBySpecialty(questions []domain.Question, selected []string) []domain.Question {
	wanted := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		wanted[s] = struct{}{}
	}
	out := questions[:0:0]
	for _, q := range questions {
		for _, s := range q.Specialties {
			if _, ok := wanted[s]; ok {
				out = append(out, q)
				break
			}
		}
	}
	return out
}

// sample draws up to n questions without replacement using a partial Fisher-Yates shuffle
// on a copy of the pool.
func sample(pool []domain.Question, n int, rnd *rand.Rand) []domain.Question {
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	if n > len(pool) {
		n = len(pool)
	}
	if rnd == nil {
		rnd = NewRand()
	}
	shuffled := make([]domain.Question, len(pool))
	copy(shuffled, pool)
	for i := 0; i < n; i++ {
		j := i + rnd.Intn(len(shuffled)-i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:n]
}
