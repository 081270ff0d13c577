package service

import "strings"

var (
	positiveWords = []string{"спасибо", "хорошо", "отлично", "понятно", "помогли"}
	negativeWords = []string{"плохо", "не понятно", "ошибка", "проблема", "не работает"}
)

// AnalyzeSentiment is a keyword heuristic returning positive, negative or neutral.
func AnalyzeSentiment(text string) string {
	lower := strings.ToLower(text)
	pos, neg := 0, 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			pos++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			neg++
		}
	}
	switch {
	case pos > neg:
		return "positive"
	case neg > pos:
		return "negative"
	default:
		return "neutral"
	}
}
