package selectors

import (
	"strings"
	"unicode"
)

// EstimateTokens approximates a BPE token count at four characters per token.
func EstimateTokens(text string) int {
	n := len([]rune(strings.TrimSpace(text)))
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// FleschKincaidGrade returns the Flesch-Kincaid grade level of text.
// Text without words scores 0.
func FleschKincaidGrade(text string) float64 {
	words := 0
	syllables := 0
	for _, w := range strings.Fields(text) {
		w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if w == "" {
			continue
		}
		words++
		syllables += countSyllables(w)
	}
	if words == 0 {
		return 0
	}

	sentences := strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")
	if sentences == 0 {
		sentences = 1
	}

	return 0.39*float64(words)/float64(sentences) + 11.8*float64(syllables)/float64(words) - 15.59
}

// countSyllables counts vowel groups, dropping a trailing silent e.
func countSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range word {
		v := strings.ContainsRune("aeiouy", r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}
