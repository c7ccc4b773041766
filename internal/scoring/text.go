package scoring

import (
	"strings"
)

// Readability estimates the Flesch reading-ease of text, clamped to [0,100].
// Empty text scores 0.
func Readability(text string) float64 {
	tokens := words(text)
	if len(tokens) == 0 {
		return 0
	}

	syllables := 0
	for _, w := range tokens {
		syllables += countSyllables(w)
	}

	sentences := countSentences(text)
	wordsPerSentence := float64(len(tokens)) / float64(sentences)
	syllablesPerWord := float64(syllables) / float64(len(tokens))

	ease := 206.835 - 1.015*wordsPerSentence - 84.6*syllablesPerWord
	return clampFloat(ease, 0, 100)
}

// CountKeywords returns how many distinct keywords occur in text as whole
// words, ignoring case. Multi-word keywords must appear as a phrase.
func CountKeywords(text string, keywords []string) int {
	tokens := words(text)
	if len(tokens) == 0 || len(keywords) == 0 {
		return 0
	}
	haystack := " " + strings.Join(tokens, " ") + " "

	seen := make(map[string]bool, len(keywords))
	count := 0
	for _, kw := range keywords {
		normalized := strings.Join(words(kw), " ")
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		if strings.Contains(haystack, " "+normalized+" ") {
			count++
		}
	}
	return count
}

// KeywordsFromIdea extracts candidate keywords from a business idea: every
// word of four or more letters that is not a stop word.
func KeywordsFromIdea(idea string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, w := range words(idea) {
		if len([]rune(w)) < 4 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func countSentences(text string) int {
	n := 0
	inTerminator := false
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			if !inTerminator {
				n++
			}
			inTerminator = true
		default:
			inTerminator = false
		}
	}
	if n == 0 {
		return 1
	}
	// text without a closing terminator still ends a sentence
	trimmed := strings.TrimRight(strings.TrimSpace(text), "\"')")
	if trimmed != "" && !strings.ContainsAny(trimmed[len(trimmed)-1:], ".!?") {
		n++
	}
	return n
}

func countSyllables(word string) int {
	word = strings.Trim(word, "'")
	if word == "" {
		return 0
	}

	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}

	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}

var stopWords = map[string]bool{
	"about": true, "with": true, "that": true, "this": true, "from": true,
	"into": true, "their": true, "there": true, "which": true, "will": true,
	"would": true, "your": true, "have": true, "more": true, "some": true,
	"than": true, "them": true, "they": true, "what": true, "when": true,
	"where": true, "while": true, "also": true, "just": true, "like": true,
	"very": true, "each": true, "other": true, "over": true, "only": true,
}
