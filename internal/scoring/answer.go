// Package scoring computes answer quality scores for questioning sessions.
//
// Score is the single formula used wherever answer quality is shown, both
// while a session is running and in post-hoc insights.
package scoring

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxLengthPoints      = 30
	maxReadabilityPoints = 20
	maxKeywordPoints     = 30
	maxConfidencePoints  = 20
	pointsPerKeyword     = 5
)

// Result is a scored answer together with the inputs that produced it.
type Result struct {
	Score        int     `json:"score"`
	Length       int     `json:"length"`
	Readability  float64 `json:"readability"`
	KeywordCount int     `json:"keywordCount"`
	Confidence   float64 `json:"confidence"`
}

// Score returns the quality of an answer in [0,100].
//
// Length contributes up to 30, readability up to 20, keyword relevance up
// to 30 (5 per keyword) and confidence up to 20. Readability and confidence
// are on a 0-100 scale and are clamped to it.
func Score(answerText string, confidence, readability float64, keywordCount int) int {
	total := float64(lengthPoints(answerText))
	total += clampFloat(readability, 0, 100) / 100 * maxReadabilityPoints
	total += float64(keywordPoints(keywordCount))
	total += clampFloat(confidence, 0, 100) / 100 * maxConfidencePoints

	return clampInt(int(math.Round(total)), 0, 100)
}

// Analyze derives readability and keyword count from the text and scores it.
func Analyze(answerText string, confidence float64, keywords []string) Result {
	readability := Readability(answerText)
	keywordCount := CountKeywords(answerText, keywords)
	return Result{
		Score:        Score(answerText, confidence, readability, keywordCount),
		Length:       answerLength(answerText),
		Readability:  readability,
		KeywordCount: keywordCount,
		Confidence:   clampFloat(confidence, 0, 100),
	}
}

func lengthPoints(text string) int {
	n := answerLength(text)
	switch {
	case n > 500:
		return 25
	case n >= 50:
		return maxLengthPoints
	case n >= 20:
		return 15
	default:
		return 0
	}
}

func keywordPoints(keywordCount int) int {
	if keywordCount <= 0 {
		return 0
	}
	if keywordCount*pointsPerKeyword > maxKeywordPoints {
		return maxKeywordPoints
	}
	return keywordCount * pointsPerKeyword
}

func answerLength(text string) int {
	return utf8.RuneCountInString(strings.TrimSpace(text))
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func clampFloat(value, min, max float64) float64 {
	if math.IsNaN(value) || value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// words splits text into lowercase alphanumeric tokens.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
