package gormdb_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"medquiz-service/internal/domain"
	"medquiz-service/internal/testutil"
)

func TestCreateAndFindQuestion(t *testing.T) {
	repo := testutil.NewQuestionRepository(t)
	ctx := context.Background()

	nq := testutil.SampleQuestion(7, 2019, "F")
	nq.Specialties = []string{"kardiologi"}
	nq.Tags = []string{"ekg"}
	nq.Images = []string{"img-1"}
	id := testutil.MustCreate(t, repo, nq, 1)

	got, err := repo.FindByIDs(ctx, []int{id})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 question, got %d", len(got))
	}
	q := got[0]
	if q.ExamSet.Semester != 7 || q.ExamSet.Year != 2019 || q.ExamSet.Season != "F" {
		t.Fatalf("unexpected exam set %+v", q.ExamSet)
	}
	if !reflect.DeepEqual(q.CorrectAnswers, []int{2}) || !reflect.DeepEqual(q.Images, []string{"img-1"}) {
		t.Fatalf("unexpected json columns %+v %+v", q.CorrectAnswers, q.Images)
	}
	if !reflect.DeepEqual(q.Specialties, []string{"kardiologi"}) || !reflect.DeepEqual(q.Tags, []string{"ekg"}) {
		t.Fatalf("expected creator votes to define metadata, got %v %v", q.Specialties, q.Tags)
	}
}

func TestFindQuestionsFilters(t *testing.T) {
	repo := testutil.NewQuestionRepository(t)
	ctx := context.Background()

	cardio := testutil.SampleQuestion(7, 2019, "F")
	cardio.Specialties = []string{"kardiologi"}
	idCardio := testutil.MustCreate(t, repo, cardio, 1)
	idAutumn := testutil.MustCreate(t, repo, testutil.SampleQuestion(7, 2019, "E"), 1)
	testutil.MustCreate(t, repo, testutil.SampleQuestion(8, 2019, "F"), 1)

	pool, err := repo.FindQuestions(ctx, domain.QuestionFilter{Semester: 7})
	if err != nil || len(pool) != 2 {
		t.Fatalf("expected 2 questions in semester 7, got %d (%v)", len(pool), err)
	}

	bySpecialty, _ := repo.FindQuestions(ctx, domain.QuestionFilter{Semester: 7, Specialties: []string{"kardiologi", "urologi"}})
	if len(bySpecialty) != 1 || bySpecialty[0].ID != idCardio {
		t.Fatalf("expected specialty filter to match cardio only, got %+v", bySpecialty)
	}

	bySet, _ := repo.FindQuestions(ctx, domain.QuestionFilter{Semester: 7, ExamYear: 2019, ExamSeason: "E"})
	if len(bySet) != 1 || bySet[0].ID != idAutumn {
		t.Fatalf("expected set filter to match autumn only, got %+v", bySet)
	}

	limited, _ := repo.FindQuestions(ctx, domain.QuestionFilter{Semester: 7, N: 1, Random: true})
	if len(limited) != 1 {
		t.Fatalf("expected limit applied, got %d", len(limited))
	}
}

func TestExcludeAnsweredBy(t *testing.T) {
	repo := testutil.NewQuestionRepository(t)
	ctx := context.Background()
	answered := testutil.MustCreate(t, repo, testutil.SampleQuestion(7, 2019, "F"), 1)
	fresh := testutil.MustCreate(t, repo, testutil.SampleQuestion(7, 2019, "F"), 1)

	user := 5
	if err := repo.SaveAnswer(ctx, domain.Answer{QuestionID: answered, UserID: &user, Answer: "wrong", AnswerNo: 1, Semester: 7}); err != nil {
		t.Fatalf("save answer: %v", err)
	}
	if err := repo.SaveAnswer(ctx, domain.Answer{QuestionID: fresh, Answer: "correct", AnswerNo: 2, Semester: 7}); err != nil {
		t.Fatalf("save anonymous answer: %v", err)
	}

	got, err := repo.FindQuestions(ctx, domain.QuestionFilter{Semester: 7, ExcludeAnsweredBy: user})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].ID != fresh {
		t.Fatalf("expected only unanswered question, got %+v", got)
	}
}

func TestReplaceVotesAndViewer(t *testing.T) {
	repo := testutil.NewQuestionRepository(t)
	ctx := context.Background()
	nq := testutil.SampleQuestion(7, 2019, "F")
	nq.Specialties = []string{"kardiologi"}
	id := testutil.MustCreate(t, repo, nq, 1)

	if err := repo.ReplaceVotes(ctx, id, 2, map[domain.VoteKind][]string{domain.VoteSpecialty: {"kardiologi", "nefrologi"}}); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := repo.ReplaceVotes(ctx, id, 2, map[domain.VoteKind][]string{domain.VoteSpecialty: {"nefrologi"}}); err != nil {
		t.Fatalf("revote: %v", err)
	}

	got, _ := repo.FindByIDs(ctx, []int{id})
	want := []domain.VoteCount{{Value: "kardiologi", Votes: 1}, {Value: "nefrologi", Votes: 1}}
	if !reflect.DeepEqual(got[0].SpecialtyVotes, want) {
		t.Fatalf("expected replaced votes %v, got %v", want, got[0].SpecialtyVotes)
	}

	if err := repo.AttachViewer(ctx, got, 2); err != nil {
		t.Fatalf("attach viewer: %v", err)
	}
	if !reflect.DeepEqual(got[0].UserSpecialtyVotes, []string{"nefrologi"}) {
		t.Fatalf("expected own votes, got %v", got[0].UserSpecialtyVotes)
	}
}

func TestCommentsArePrivatePerUser(t *testing.T) {
	repo := testutil.NewQuestionRepository(t)
	ctx := context.Background()
	id := testutil.MustCreate(t, repo, testutil.SampleQuestion(7, 2019, "F"), 1)
	now := time.Now()

	public, err := repo.CreateComment(ctx, domain.Comment{QuestionID: id, UserID: 3, Text: "Godt spørgsmål", CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if _, err := repo.CreateComment(ctx, domain.Comment{QuestionID: id, UserID: 3, Text: "husk", Private: true, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create private comment: %v", err)
	}

	got, _ := repo.FindByIDs(ctx, []int{id})
	if len(got[0].PublicComments) != 1 || got[0].PublicComments[0].ID != public.ID {
		t.Fatalf("expected only public comment, got %+v", got[0].PublicComments)
	}
	_ = repo.AttachViewer(ctx, got, 4)
	if len(got[0].PrivateComments) != 0 {
		t.Fatalf("expected no private comments for other user")
	}
	_ = repo.AttachViewer(ctx, got, 3)
	if len(got[0].PrivateComments) != 1 {
		t.Fatalf("expected own private comment")
	}

	public.Text = "Rettet"
	if err := repo.UpdateComment(ctx, public); err != nil {
		t.Fatalf("update comment: %v", err)
	}
	stored, err := repo.GetComment(ctx, id, public.ID)
	if err != nil || stored.Text != "Rettet" {
		t.Fatalf("expected updated comment, got %+v (%v)", stored, err)
	}
	if err := repo.DeleteComment(ctx, id, public.ID); err != nil {
		t.Fatalf("delete comment: %v", err)
	}
	if _, err := repo.GetComment(ctx, id, public.ID); !errors.Is(err, domain.ErrCommentNotFound) {
		t.Fatalf("expected comment not found, got %v", err)
	}
}

func TestBookmarksAndDelete(t *testing.T) {
	repo := testutil.NewQuestionRepository(t)
	ctx := context.Background()
	id := testutil.MustCreate(t, repo, testutil.SampleQuestion(7, 2019, "F"), 1)

	if err := repo.AddBookmark(ctx, 2, id); err != nil {
		t.Fatalf("bookmark: %v", err)
	}
	if err := repo.AddBookmark(ctx, 2, id); err != nil {
		t.Fatalf("expected repeated bookmark to be ignored, got %v", err)
	}
	removed, err := repo.RemoveBookmark(ctx, 2, id)
	if err != nil || !removed {
		t.Fatalf("expected bookmark removed, got %v (%v)", removed, err)
	}
	removed, _ = repo.RemoveBookmark(ctx, 2, id)
	if removed {
		t.Fatalf("expected nothing to remove")
	}

	deleted, err := repo.DeleteQuestion(ctx, id)
	if err != nil || !deleted {
		t.Fatalf("expected question deleted, got %v (%v)", deleted, err)
	}
	got, _ := repo.FindByIDs(ctx, []int{id})
	if len(got) != 0 {
		t.Fatalf("expected question gone")
	}
}

func TestUpdateQuestion(t *testing.T) {
	repo := testutil.NewQuestionRepository(t)
	ctx := context.Background()
	id := testutil.MustCreate(t, repo, testutil.SampleQuestion(7, 2019, "F"), 1)

	got, _ := repo.FindByIDs(ctx, []int{id})
	q := got[0]
	q.Answer3 = "Calciumglukonat"
	q.CorrectAnswers = []int{3}
	q.Images = []string{"ekg.png"}
	q.ExamSetQno = 12
	if err := repo.UpdateQuestion(ctx, q); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = repo.FindByIDs(ctx, []int{id})
	if got[0].Answer3 != "Calciumglukonat" || got[0].CorrectAnswers[0] != 3 || got[0].Images[0] != "ekg.png" || got[0].ExamSetQno != 12 {
		t.Fatalf("expected updated fields, got %+v", got[0])
	}
	if got[0].ExamSet != q.ExamSet {
		t.Fatalf("expected exam set unchanged, got %+v", got[0].ExamSet)
	}

	q.ID = id + 100
	if err := repo.UpdateQuestion(ctx, q); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListAnswersAndBookmarks(t *testing.T) {
	repo := testutil.NewQuestionRepository(t)
	ctx := context.Background()
	first := testutil.MustCreate(t, repo, testutil.SampleQuestion(7, 2019, "F"), 1)
	second := testutil.MustCreate(t, repo, testutil.SampleQuestion(9, 2019, "F"), 1)
	user := 2

	for _, a := range []domain.Answer{
		{QuestionID: first, UserID: &user, Answer: "wrong", AnswerNo: 1, Semester: 7},
		{QuestionID: second, UserID: &user, Answer: "correct", AnswerNo: 2, Semester: 9},
		{QuestionID: first, Answer: "correct", AnswerNo: 2, Semester: 7},
	} {
		if err := repo.SaveAnswer(ctx, a); err != nil {
			t.Fatalf("save answer: %v", err)
		}
	}
	answers, err := repo.ListAnswers(ctx, user, 0, 10)
	if err != nil || len(answers) != 2 || answers[0].QuestionID != second || answers[1].Answer != "wrong" {
		t.Fatalf("expected the user's answers newest first, got %+v (%v)", answers, err)
	}
	answers, _ = repo.ListAnswers(ctx, user, 7, 10)
	if len(answers) != 1 || answers[0].QuestionID != first {
		t.Fatalf("expected semester filter, got %+v", answers)
	}

	for _, id := range []int{first, second} {
		if err := repo.AddBookmark(ctx, user, id); err != nil {
			t.Fatalf("bookmark: %v", err)
		}
	}
	ids, err := repo.ListBookmarks(ctx, user)
	if err != nil || len(ids) != 2 || ids[0] != second {
		t.Fatalf("expected newest bookmark first, got %v (%v)", ids, err)
	}
	ids, _ = repo.ListBookmarks(ctx, 3)
	if len(ids) != 0 {
		t.Fatalf("expected no bookmarks for another user, got %v", ids)
	}
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	repo := testutil.NewQuestionRepository(t)
	id := testutil.MustCreate(t, repo, testutil.SampleQuestion(7, 2019, "F"), 1)

	got, err := repo.Search(context.Background(), "SPIRONOLACTON", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != id {
		t.Fatalf("expected match on answer text, got %+v", got)
	}
}
