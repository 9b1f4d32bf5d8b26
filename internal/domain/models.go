package domain

import (
	"encoding/json"
	"time"
)

// QuizType selects how the questions of a quiz are chosen.
type QuizType string

const (
	QuizRandom    QuizType = "random"
	QuizSpecialer QuizType = "specialer"
	QuizSet       QuizType = "set"
	QuizIDs       QuizType = "ids"
	QuizSpecific  QuizType = "specific"
)

// Valid reports whether t is one of the known quiz types.
func (t QuizType) Valid() bool {
	switch t {
	case QuizRandom, QuizSpecialer, QuizSet, QuizIDs, QuizSpecific:
		return true
	}
	return false
}

// VoteKind distinguishes specialty votes from tag votes.
type VoteKind string

const (
	VoteSpecialty VoteKind = "specialty"
	VoteTag       VoteKind = "tag"
)

// Roles known to the backend. Anything else is treated as a plain user.
const (
	RoleUser    = "user"
	RoleCreator = "creator"
	RoleEditor  = "editor"
	RoleAdmin   = "admin"
)

// User is the identity forwarded by the fronting session layer.
type User struct {
	ID   int    `json:"id"`
	Role string `json:"role"`
}

// IsAdmin reports whether the user may bypass question limits.
func (u *User) IsAdmin() bool {
	return u != nil && (u.Role == RoleAdmin || u.Role == RoleCreator)
}

// ExamSet is one sitting of an exam for a semester.
type ExamSet struct {
	ID       int    `json:"id"`
	Semester int    `json:"semester"`
	Year     int    `json:"year"`
	Season   string `json:"season"`
}

// VoteCount is the number of votes a specialty or tag has received on a question.
type VoteCount struct {
	Value string `json:"value"`
	Votes int    `json:"votes"`
}

// Comment is a public or private note on a question.
type Comment struct {
	ID         int       `json:"id"`
	QuestionID int       `json:"questionId"`
	UserID     int       `json:"userId"`
	Text       string    `json:"text"`
	Private    bool      `json:"private"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Question models an MCQ with three answers and one or more correct answers.
type Question struct {
	ID             int         `json:"id"`
	Text           string      `json:"text"`
	Answer1        string      `json:"answer1"`
	Answer2        string      `json:"answer2"`
	Answer3        string      `json:"answer3"`
	CorrectAnswers []int       `json:"correctAnswers"`
	Images         []string    `json:"images"`
	ExamSet        ExamSet     `json:"examSet"`
	ExamSetQno     int         `json:"examSetQno"`
	Specialties    []string    `json:"specialties"`
	Tags           []string    `json:"tags"`
	SpecialtyVotes []VoteCount `json:"specialtyVotes"`
	TagVotes       []VoteCount `json:"tagVotes"`
	PublicComments []Comment   `json:"publicComments"`

	// Present only when the request carried a user.
	PrivateComments    []Comment `json:"privateComments,omitempty"`
	UserSpecialtyVotes []string  `json:"userSpecialtyVotes,omitempty"`
	UserTagVotes       []string  `json:"userTagVotes,omitempty"`

	// Answer is the locally chosen option (1-3); never sent by the backend.
	Answer int `json:"answer,omitempty"`
}

// Semester returns the semester the question's exam set belongs to.
func (q Question) Semester() int {
	return q.ExamSet.Semester
}

// IsCorrect reports whether answerNo is one of the correct answers.
func (q Question) IsCorrect(answerNo int) bool {
	for _, c := range q.CorrectAnswers {
		if c == answerNo {
			return true
		}
	}
	return false
}

// AnswerText returns the text of answer 1, 2 or 3.
func (q Question) AnswerText(n int) string {
	switch n {
	case 1:
		return q.Answer1
	case 2:
		return q.Answer2
	case 3:
		return q.Answer3
	}
	return ""
}

// AddVoteCount records a tally for value. Any value with at least one vote becomes one of the
// question's specialties or tags.
func (q *Question) AddVoteCount(kind VoteKind, value string, votes int) {
	if votes <= 0 {
		return
	}
	c := VoteCount{Value: value, Votes: votes}
	switch kind {
	case VoteSpecialty:
		q.SpecialtyVotes = append(q.SpecialtyVotes, c)
		q.Specialties = append(q.Specialties, value)
	case VoteTag:
		q.TagVotes = append(q.TagVotes, c)
		q.Tags = append(q.Tags, value)
	}
}

// AddUserVote records one of the viewer's own votes.
func (q *Question) AddUserVote(kind VoteKind, value string) {
	switch kind {
	case VoteSpecialty:
		q.UserSpecialtyVotes = append(q.UserSpecialtyVotes, value)
	case VoteTag:
		q.UserTagVotes = append(q.UserTagVotes, value)
	}
}

// Tally extracts the vote tallies of the question.
func (q Question) Tally() VoteTally {
	return VoteTally{
		QuestionID:  q.ID,
		Specialties: q.SpecialtyVotes,
		Tags:        q.TagVotes,
	}
}

// ExamSetDescriptor is a derived, display-ready description of an exam set.
type ExamSetDescriptor struct {
	ExamSeason string `json:"examSeason"`
	ExamYear   int    `json:"examYear"`
	Reex       string `json:"reex"`
	Text       string `json:"text"`
	API        string `json:"api"`
}

// Answer is a single submitted answer.
type Answer struct {
	QuestionID int    `json:"questionId"`
	UserID     *int   `json:"userId,omitempty"`
	Answer     string `json:"answer"` // "correct" or "wrong"
	AnswerNo   int    `json:"answerNo"`
	Semester   int    `json:"semester"`
}

// AnswerReceipt is returned after an answer has been stored.
type AnswerReceipt struct {
	Answer         int   `json:"answer"`
	QuestionID     int   `json:"questionId"`
	Correct        bool  `json:"correct"`
	CorrectAnswers []int `json:"correctAnswers"`
}

// VoteRequest replaces the votes of a user on a question. A nil slice leaves that kind untouched;
// an empty slice clears it.
type VoteRequest struct {
	SpecialtyVotes *[]string `json:"specialtyVotes,omitempty"`
	TagVotes       *[]string `json:"tagVotes,omitempty"`
}

// VoteTally is broadcast to subscribers whenever votes on a question change.
type VoteTally struct {
	QuestionID  int         `json:"questionId"`
	Specialties []VoteCount `json:"specialties"`
	Tags        []VoteCount `json:"tags"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Report flags a problem with a question (or anything else) to the editors.
type Report struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	UserID    *int            `json:"userId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewQuestion is the payload for creating a question.
type NewQuestion struct {
	Text           string   `json:"text"`
	Answer1        string   `json:"answer1"`
	Answer2        string   `json:"answer2"`
	Answer3        string   `json:"answer3"`
	CorrectAnswers []int    `json:"correctAnswers"`
	Images         []string `json:"images"`
	Semester       int      `json:"semester"`
	ExamYear       int      `json:"examYear"`
	ExamSeason     string   `json:"examSeason"`
	ExamSetQno     int      `json:"examSetQno"`
	Specialties    []string `json:"specialties"`
	Tags           []string `json:"tags"`
}

// QuestionPatch edits an existing question. Nil fields are left as they are.
type QuestionPatch struct {
	Text           *string   `json:"text,omitempty"`
	Answer1        *string   `json:"answer1,omitempty"`
	Answer2        *string   `json:"answer2,omitempty"`
	Answer3        *string   `json:"answer3,omitempty"`
	CorrectAnswers *[]int    `json:"correctAnswers,omitempty"`
	Images         *[]string `json:"images,omitempty"`
	ExamSetQno     *int      `json:"examSetQno,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p QuestionPatch) Empty() bool {
	return p.Text == nil && p.Answer1 == nil && p.Answer2 == nil && p.Answer3 == nil &&
		p.CorrectAnswers == nil && p.Images == nil && p.ExamSetQno == nil
}

// Apply returns q with the patched fields replaced.
func (p QuestionPatch) Apply(q Question) Question {
	if p.Text != nil {
		q.Text = *p.Text
	}
	if p.Answer1 != nil {
		q.Answer1 = *p.Answer1
	}
	if p.Answer2 != nil {
		q.Answer2 = *p.Answer2
	}
	if p.Answer3 != nil {
		q.Answer3 = *p.Answer3
	}
	if p.CorrectAnswers != nil {
		q.CorrectAnswers = *p.CorrectAnswers
	}
	if p.Images != nil {
		q.Images = *p.Images
	}
	if p.ExamSetQno != nil {
		q.ExamSetQno = *p.ExamSetQno
	}
	return q
}

// AnswerRecord is one entry in a user's answer history.
type AnswerRecord struct {
	QuestionID int       `json:"questionId"`
	Answer     string    `json:"answer"`
	AnswerNo   int       `json:"answerNo"`
	Semester   int       `json:"semester"`
	CreatedAt  time.Time `json:"createdAt"`
}

// QuestionFilter narrows a question listing. Zero values mean "no constraint".
type QuestionFilter struct {
	IDs         []int
	Semester    int
	N           int
	Specialties []string
	Tags        []string
	ExamYear    int
	ExamSeason  string
	// ExcludeAnsweredBy drops questions the given user has answered before.
	ExcludeAnsweredBy int
	Random            bool
}
