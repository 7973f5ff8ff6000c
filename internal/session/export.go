package session

import "strings"

// CSV export of a session's answered questions. Free-text columns
// (question and explanation) are always quoted; the remaining columns
// only when they contain a comma or a quote. Embedded quotes are doubled.

const exportHeader = "Question,Section,Topic,Your Answer,Correct Answer,Is Correct,Explanation"

// ExportCSV renders the answered questions as a CSV table, one row per
// answer, preceded by the header row.
func ExportCSV(answered []AnsweredQuestion) string {
	var b strings.Builder
	b.WriteString(exportHeader)
	b.WriteByte('\n')

	for _, a := range answered {
		correct := "false"
		if a.IsCorrect() {
			correct = "true"
		}
		row := []string{
			quoteAlways(a.QuestionText),
			quoteIfNeeded(a.Section),
			quoteIfNeeded(a.Topic),
			quoteIfNeeded(a.UserAnswer),
			quoteIfNeeded(a.CorrectAnswer),
			correct,
			quoteAlways(a.Explanation),
		}
		b.WriteString(strings.Join(row, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

func quoteAlways(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, `,"`) {
		return quoteAlways(s)
	}
	return s
}
