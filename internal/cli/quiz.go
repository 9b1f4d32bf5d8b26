package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"medquiz-service/internal/client"
	"medquiz-service/internal/config"
	"medquiz-service/internal/domain"
	"medquiz-service/internal/print"
	"medquiz-service/internal/quiz"
)

type quizOptions struct {
	Type        string
	Semester    int
	N           int
	OnlyNew     bool
	Set         string
	Specialties []string
	Tags        []string
	IDs         []int
	QuestionID  int
	UserID      int
	Role        string
	PDF         string
	Answers     bool
	Interactive bool
}

// NewQuizCmd builds a quiz from the API and prints it or runs it in the terminal.
func NewQuizCmd(configPath, apiURL *string) *cobra.Command {
	opts := quizOptions{}
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Fetch a quiz and print it, or answer it interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runQuiz(cmd.Context(), newAPIClient(cfg, *apiURL, opts.user()), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Type, "type", string(domain.QuizRandom), "quiz type: random, specialer, set, ids or specific")
	f.IntVar(&opts.Semester, "semester", 7, "semester to draw questions from")
	f.IntVar(&opts.N, "n", 10, "number of questions for random and specialer quizzes")
	f.BoolVar(&opts.OnlyNew, "only-new", false, "skip questions the user has answered before")
	f.StringVar(&opts.Set, "set", "", "exam set as {year}/{season}, e.g. 2018/F")
	f.StringSliceVar(&opts.Specialties, "specialty", nil, "specialty to include (repeatable)")
	f.StringSliceVar(&opts.Tags, "tag", nil, "tag to include (repeatable)")
	f.IntSliceVar(&opts.IDs, "ids", nil, "question ids for the ids quiz type")
	f.IntVar(&opts.QuestionID, "id", 0, "question id for the specific quiz type")
	f.IntVar(&opts.UserID, "user-id", 0, "act as this user; answers are then stored")
	f.StringVar(&opts.Role, "role", domain.RoleUser, "role of --user-id")
	f.StringVar(&opts.PDF, "pdf", "", "write the quiz as PDF to this file")
	f.BoolVar(&opts.Answers, "answers", false, "include the answer key when printing")
	f.BoolVarP(&opts.Interactive, "interactive", "i", false, "answer the questions in the terminal")
	return cmd
}

// NewSetsCmd lists the exam sets of a semester.
func NewSetsCmd(configPath, apiURL *string) *cobra.Command {
	var semester int
	cmd := &cobra.Command{
		Use:   "sets",
		Short: "List the exam sets of a semester",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			sets, err := newAPIClient(cfg, *apiURL, nil).ExamSets(cmd.Context(), semester)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range sets {
				fmt.Fprintf(out, "%-10s %s\n", s.API, s.Text)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&semester, "semester", 7, "semester")
	return cmd
}

func (o quizOptions) user() *domain.User {
	if o.UserID == 0 {
		return nil
	}
	return &domain.User{ID: o.UserID, Role: o.Role}
}

func newAPIClient(cfg config.Config, apiURL string, user *domain.User) *client.Client {
	base := apiURL
	if base == "" {
		base = cfg.Client.BaseURL
	}
	return client.New(base, config.TTLDuration(cfg.Client.Timeout, 15*time.Second), user)
}

func runQuiz(ctx context.Context, api *client.Client, opts quizOptions, in io.Reader, out io.Writer) error {
	store := quiz.NewStore(quiz.DefaultState())
	fetcher := client.NewFetcher(api, store)

	if _, err := fetcher.FetchPool(ctx, opts.Semester); err != nil {
		return fmt.Errorf("load semester %d: %w", opts.Semester, err)
	}
	store.Dispatch(quiz.ChangeSetting(quiz.FieldType, opts.Type))
	store.Dispatch(quiz.ChangeSetting(quiz.FieldN, opts.N))
	store.Dispatch(quiz.ChangeSetting(quiz.FieldOnlyNew, opts.OnlyNew))
	store.Dispatch(quiz.ChangeSetting(quiz.FieldSet, opts.Set))
	store.Dispatch(quiz.ChangeSetting(quiz.FieldQuestionID, opts.QuestionID))
	for _, s := range opts.Specialties {
		store.Dispatch(quiz.ChangeSetting(quiz.FieldSpecialties, s))
	}
	for _, t := range opts.Tags {
		store.Dispatch(quiz.ChangeSetting(quiz.FieldTags, t))
	}

	var err error
	if domain.QuizType(opts.Type) == domain.QuizIDs {
		_, err = fetcher.Fetch(ctx, store.State().Settings, opts.IDs)
	} else {
		_, err = fetcher.Start(ctx, quiz.NewRand())
	}
	if err != nil {
		return err
	}

	state := store.State()
	if len(state.Questions) == 0 {
		return fmt.Errorf("no questions matched")
	}
	if opts.Interactive {
		return answerInteractively(ctx, client.NewRecorder(api, store), store, api.User(), in, out)
	}

	sheet := print.Sheet{Title: sheetTitle(state.Settings), Questions: state.Questions, WithAnswers: opts.Answers}
	if opts.PDF == "" {
		return print.WriteText(out, sheet)
	}
	file, err := os.Create(opts.PDF)
	if err != nil {
		return err
	}
	if err := print.WritePDF(file, sheet); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d questions to %s\n", len(sheet.Questions), opts.PDF)
	return nil
}

// answerInteractively asks each question in turn and reads an answer (1-3) per line. Answers
// are recorded locally and, for a known user, submitted in the background.
func answerInteractively(ctx context.Context, recorder *client.Recorder, store *quiz.Store, user *domain.User, in io.Reader, out io.Writer) error {
	defer recorder.Wait()
	scanner := bufio.NewScanner(in)
	questions := store.State().Questions
	correct := 0
	for i, q := range questions {
		fmt.Fprintf(out, "\n%d/%d. %s\n", i+1, len(questions), strings.TrimSpace(q.Text))
		for n := 1; n <= 3; n++ {
			fmt.Fprintf(out, "  %d) %s\n", n, q.AnswerText(n))
		}
		choice, ok := readChoice(scanner, out)
		if !ok {
			break
		}
		isCorrect := q.IsCorrect(choice)
		recorder.RecordAnswer(ctx, q.ID, choice, isCorrect, q.Semester(), user)
		if isCorrect {
			correct++
			fmt.Fprintln(out, "Korrekt!")
		} else {
			fmt.Fprintf(out, "Forkert. Rigtigt svar: %v\n", q.CorrectAnswers)
		}
	}
	fmt.Fprintf(out, "\n%d/%d korrekte\n", correct, len(questions))
	return nil
}

func readChoice(scanner *bufio.Scanner, out io.Writer) (int, bool) {
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return 0, false
		}
		n, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
		if err == nil && n >= 1 && n <= 3 {
			return n, true
		}
		fmt.Fprintln(out, "svar 1, 2 eller 3")
	}
}

func sheetTitle(s quiz.Settings) string {
	if s.Type == domain.QuizSet {
		for _, set := range s.Sets {
			if set.API == s.Set {
				return set.Text
			}
		}
	}
	return fmt.Sprintf("%d. semester", s.Semester)
}
