package quiz

import "medquiz-service/internal/domain"

// Validate lists the reasons a quiz cannot start with the given settings. An empty result
// means the quiz may start.
func Validate(s Settings) []string {
	var errs []string
	if s.Semester == 0 {
		errs = append(errs, "You have to select a semester first.")
	}
	if !s.Type.Valid() {
		errs = append(errs, "Unknown quiz type "+string(s.Type)+".")
	}
	if (s.Type == domain.QuizRandom || s.Type == domain.QuizSpecialer) && s.N < 1 {
		errs = append(errs, "You have to ask for at least one question.")
	}
	if s.Type == domain.QuizSpecialer && len(s.Specialties) == 0 {
		errs = append(errs, "You have to select at least one specialty.")
	}
	if s.Type == domain.QuizSet && s.Set == "" {
		errs = append(errs, "You have to select a set to start.")
	}
	if s.Type == domain.QuizSpecific && s.QuestionID == 0 {
		errs = append(errs, "You have to select a question to start.")
	}
	if len(s.Questions) == 0 {
		errs = append(errs, "There are no questions for the selected semester.")
	}
	return errs
}
