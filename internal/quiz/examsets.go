package quiz

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"medquiz-service/internal/domain"
)

const (
	seasonSpring = "Forår"
	seasonAutumn = "Efterår"
	reexSuffix   = " (reeks)"
)

// DeriveSets infers the distinct exam sittings present in questions. The result is sorted by
// year ascending, season descending (spring before autumn within a year) and ordinary exams
// before re-exams, with structural duplicates removed.
func DeriveSets(questions []domain.Question) []domain.ExamSetDescriptor {
	sets := make([]domain.ExamSetDescriptor, 0, len(questions))
	for _, q := range questions {
		sets = append(sets, describeSet(q.ExamSet.Year, q.ExamSet.Season))
	}

	sort.SliceStable(sets, func(i, j int) bool {
		a, b := sets[i], sets[j]
		if a.ExamYear != b.ExamYear {
			return a.ExamYear < b.ExamYear
		}
		if a.ExamSeason != b.ExamSeason {
			return a.ExamSeason > b.ExamSeason
		}
		return a.Reex < b.Reex
	})

	// Text and API derive from the sort keys, so duplicates are adjacent here.
	out := sets[:0]
	for _, s := range sets {
		if len(out) > 0 && out[len(out)-1] == s {
			continue
		}
		out = append(out, s)
	}
	return out
}

func describeSet(year int, season string) domain.ExamSetDescriptor {
	seasonChar := seasonInitial(season)
	label := seasonAutumn
	if seasonChar == "F" {
		label = seasonSpring
	}
	reex := ""
	if isReexam(season) {
		reex = reexSuffix
	}
	return domain.ExamSetDescriptor{
		ExamSeason: seasonChar,
		ExamYear:   year,
		Reex:       reex,
		Text:       label + " " + strconv.Itoa(year) + reex,
		API:        strconv.Itoa(year) + "/" + seasonChar,
	}
}

func isReexam(season string) bool {
	return strings.Contains(strings.ToLower(season), "ree")
}

// seasonInitial returns "F" for spring sittings and "E" for everything else, reading the first
// word that does not mark a re-exam ("Ree-F" and "Reeksamen forår" both yield "F"). A season
// made only of re-exam words is treated as autumn.
func seasonInitial(season string) string {
	words := strings.FieldsFunc(season, func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		if isReexam(w) {
			continue
		}
		if strings.ToUpper(string([]rune(w)[0])) == "F" {
			return "F"
		}
		return "E"
	}
	return "E"
}

// ParseSetKey splits an exam set key "{year}/{season}" into its parts.
func ParseSetKey(key string) (int, string, error) {
	yearPart, season, ok := strings.Cut(key, "/")
	if !ok || season == "" {
		return 0, "", domain.ErrMalformedSet
	}
	year, err := strconv.Atoi(strings.TrimSpace(yearPart))
	if err != nil {
		return 0, "", domain.ErrMalformedSet
	}
	return year, strings.TrimSpace(season), nil
}

// SeasonMatches reports whether a stored exam season belongs to the set selected by key, which
// is either the full season or its initial as used in set keys.
func SeasonMatches(stored, key string) bool {
	if strings.EqualFold(stored, key) {
		return true
	}
	return len([]rune(key)) == 1 && seasonInitial(stored) == strings.ToUpper(key)
}
