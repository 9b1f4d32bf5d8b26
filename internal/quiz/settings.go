package quiz

import (
	"time"

	"medquiz-service/internal/domain"
)

// Version marks the shape of persisted settings.
const Version = "0.0.1"

// fetchDebounce suppresses the loading flag when a fetch follows the previous one closely.
const fetchDebounce = time.Second

// Slice names a part of the state that is filled by fetches. Each slice tracks the latest
// fetch token issued for it so superseded results can be discarded.
type Slice string

const (
	SlicePool     Slice = "pool"
	SliceQuiz     Slice = "quiz"
	SliceQuestion Slice = "question"
)

// Settings is the quiz configuration together with the candidate pool for the semester.
type Settings struct {
	Type        domain.QuizType `json:"type"`
	Semester    int             `json:"semester"`
	Specialties []string        `json:"specialer"`
	Tags        []string        `json:"tags"`
	N           int             `json:"n"`
	OnlyNew     bool            `json:"onlyNew"`
	Set         string          `json:"set,omitempty"`
	QuestionID  int             `json:"id,omitempty"`
	Language    string          `json:"language"`
	Version     string          `json:"version"`

	Questions     []domain.Question          `json:"questions"`
	Sets          []domain.ExamSetDescriptor `json:"sets"`
	LastPoolFetch time.Time                  `json:"lastSettingsQuestionFetch"`

	IsFetching bool      `json:"isFetching"`
	LastFetch  time.Time `json:"lastFetch"`
}

// State is the whole client-side store: settings plus the questions of the running quiz.
// Values are treated as immutable; Reduce always returns a fresh copy of changed parts.
type State struct {
	Settings  Settings
	Questions []domain.Question
	Latest    map[Slice]uint64
}

// DefaultState is the state at application start.
func DefaultState() State {
	return State{
		Settings: Settings{
			Type:        domain.QuizRandom,
			Semester:    7,
			N:           10,
			Specialties: []string{},
			Tags:        []string{},
			Language:    "dk",
			Version:     Version,
		},
		Latest: map[Slice]uint64{},
	}
}

// ActionType tags an Action.
type ActionType string

const (
	ActionChangeSetting   ActionType = "CHANGE_SETTINGS"
	ActionFetchStarted    ActionType = "IS_FETCHING"
	ActionFetchCompleted  ActionType = "FETCH_QUESTIONS"
	ActionPoolFetched     ActionType = "FETCH_SETTINGS_QUESTION"
	ActionAnswerQuestion  ActionType = "ANSWER_QUESTION"
	ActionQuestionUpdated ActionType = "QUESTION_UPDATE"
)

// SettingField names a user-editable setting.
type SettingField string

const (
	FieldType        SettingField = "type"
	FieldSemester    SettingField = "semester"
	FieldSpecialties SettingField = "specialer"
	FieldTags        SettingField = "tags"
	FieldN           SettingField = "n"
	FieldOnlyNew     SettingField = "onlyNew"
	FieldSet         SettingField = "set"
	FieldQuestionID  SettingField = "id"
	FieldLanguage    SettingField = "language"
)

// Action is a state transition request. Only the fields relevant to Type are read.
type Action struct {
	Type ActionType

	Field SettingField
	Value any

	Slice     Slice
	Token     uint64
	QuizType  domain.QuizType
	Semester  int
	Questions []domain.Question

	QuestionID int
	AnswerNo   int
	Question   domain.Question

	At time.Time
}

func ChangeSetting(field SettingField, value any) Action {
	return Action{Type: ActionChangeSetting, Field: field, Value: value}
}

func FetchStarted(slice Slice, token uint64, at time.Time) Action {
	return Action{Type: ActionFetchStarted, Slice: slice, Token: token, At: at}
}

func FetchCompleted(slice Slice, token uint64, quizType domain.QuizType, questions []domain.Question, at time.Time) Action {
	return Action{Type: ActionFetchCompleted, Slice: slice, Token: token, QuizType: quizType, Questions: questions, At: at}
}

func PoolFetched(token uint64, semester int, questions []domain.Question, at time.Time) Action {
	return Action{Type: ActionPoolFetched, Slice: SlicePool, Token: token, Semester: semester, Questions: questions, At: at}
}

func AnswerQuestion(questionID, answerNo int) Action {
	return Action{Type: ActionAnswerQuestion, QuestionID: questionID, AnswerNo: answerNo}
}

func QuestionUpdated(q domain.Question) Action {
	return Action{Type: ActionQuestionUpdated, Question: q}
}

// Reduce applies a to s and returns the new state. s is never modified.
func Reduce(s State, a Action) State {
	switch a.Type {
	case ActionChangeSetting:
		return changeSetting(s, a.Field, a.Value)
	case ActionFetchStarted:
		next := s
		next.Latest = withToken(s.Latest, a.Slice, a.Token)
		if a.Slice != SlicePool {
			next.Settings.IsFetching = a.At.Sub(s.Settings.LastFetch) > fetchDebounce
		}
		return next
	case ActionFetchCompleted:
		if stale(s, a) {
			return s
		}
		next := s
		next.Settings.IsFetching = false
		next.Settings.LastFetch = a.At
		if a.QuizType == domain.QuizSpecific {
			next.Questions = mergeQuestions(s.Questions, a.Questions)
		} else {
			next.Questions = cloneQuestions(a.Questions)
		}
		return next
	case ActionPoolFetched:
		if stale(s, a) {
			return s
		}
		next := s
		pool := cloneQuestions(a.Questions)
		next.Settings.Questions = pool
		next.Settings.Sets = DeriveSets(pool)
		next.Settings.LastPoolFetch = a.At
		if a.Semester != s.Settings.Semester {
			next.Settings.Semester = a.Semester
			next.Settings.Specialties = []string{}
			next.Settings.Tags = []string{}
		}
		return next
	case ActionAnswerQuestion:
		idx := indexOf(s.Questions, a.QuestionID)
		if idx < 0 {
			return s
		}
		next := s
		next.Questions = cloneQuestions(s.Questions)
		next.Questions[idx].Answer = a.AnswerNo
		return next
	case ActionQuestionUpdated:
		next := s
		if idx := indexOf(s.Questions, a.Question.ID); idx >= 0 {
			next.Questions = cloneQuestions(s.Questions)
			updated := a.Question
			updated.Answer = s.Questions[idx].Answer
			next.Questions[idx] = updated
		}
		if idx := indexOf(s.Settings.Questions, a.Question.ID); idx >= 0 {
			next.Settings.Questions = cloneQuestions(s.Settings.Questions)
			next.Settings.Questions[idx] = a.Question
		}
		return next
	}
	return s
}

func changeSetting(s State, field SettingField, value any) State {
	next := s
	settings := &next.Settings
	switch field {
	case FieldSpecialties, FieldTags:
		v, ok := value.(string)
		if !ok {
			return s
		}
		if field == FieldSpecialties {
			settings.Specialties = toggle(s.Settings.Specialties, v)
		} else {
			settings.Tags = toggle(s.Settings.Tags, v)
		}
	case FieldSemester:
		v, ok := value.(int)
		if !ok {
			return s
		}
		settings.Semester = v
		settings.Specialties = []string{}
		settings.Tags = []string{}
	case FieldType:
		switch v := value.(type) {
		case domain.QuizType:
			settings.Type = v
		case string:
			settings.Type = domain.QuizType(v)
		default:
			return s
		}
	case FieldN:
		v, ok := value.(int)
		if !ok {
			return s
		}
		settings.N = v
	case FieldOnlyNew:
		v, ok := value.(bool)
		if !ok {
			return s
		}
		settings.OnlyNew = v
	case FieldSet:
		v, ok := value.(string)
		if !ok {
			return s
		}
		settings.Set = v
	case FieldQuestionID:
		v, ok := value.(int)
		if !ok {
			return s
		}
		settings.QuestionID = v
	case FieldLanguage:
		v, ok := value.(string)
		if !ok {
			return s
		}
		settings.Language = v
	default:
		return s
	}
	return next
}

func stale(s State, a Action) bool {
	return a.Token != 0 && a.Token < s.Latest[a.Slice]
}

func withToken(latest map[Slice]uint64, slice Slice, token uint64) map[Slice]uint64 {
	out := make(map[Slice]uint64, len(latest)+1)
	for k, v := range latest {
		out[k] = v
	}
	if token > out[slice] {
		out[slice] = token
	}
	return out
}

// toggle adds v if absent and removes it otherwise, returning a new slice.
func toggle(values []string, v string) []string {
	out := make([]string, 0, len(values)+1)
	found := false
	for _, existing := range values {
		if existing == v {
			found = true
			continue
		}
		out = append(out, existing)
	}
	if !found {
		out = append(out, v)
	}
	return out
}

func indexOf(questions []domain.Question, id int) int {
	for i := range questions {
		if questions[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneQuestions(questions []domain.Question) []domain.Question {
	if questions == nil {
		return []domain.Question{}
	}
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	return out
}

func mergeQuestions(current, incoming []domain.Question) []domain.Question {
	out := cloneQuestions(current)
	for _, q := range incoming {
		if idx := indexOf(out, q.ID); idx >= 0 {
			out[idx] = q
			continue
		}
		out = append(out, q)
	}
	return out
}
