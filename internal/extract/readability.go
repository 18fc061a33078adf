package extract

import "strings"

// textStats accumulates the counts feeding the Flesch reading-ease formula.
type textStats struct {
	words     int
	sentences int
	syllables int
}

func analyzeText(text string) textStats {
	var stats textStats
	for _, word := range strings.Fields(text) {
		trimmed := strings.Trim(word, ".,;:!?\"'()[]{}")
		if trimmed == "" {
			continue
		}
		stats.words++
		stats.syllables += syllableCount(trimmed)
		if strings.ContainsAny(word, ".!?") {
			stats.sentences++
		}
	}
	if stats.words > 0 && stats.sentences == 0 {
		stats.sentences = 1
	}
	return stats
}

// fleschScore computes the Flesch reading-ease score, clamped to [0, 100].
func (s textStats) fleschScore() float64 {
	if s.words == 0 || s.sentences == 0 {
		return 0
	}
	score := 206.835 -
		1.015*(float64(s.words)/float64(s.sentences)) -
		84.6*(float64(s.syllables)/float64(s.words))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// syllableCount estimates syllables as vowel groups, discounting a trailing
// silent e. Every word counts at least one.
func syllableCount(word string) int {
	word = strings.ToLower(word)
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

// readabilityBand maps a Flesch score to its conventional qualitative label.
func readabilityBand(score float64) string {
	switch {
	case score >= 90:
		return "very easy"
	case score >= 80:
		return "easy"
	case score >= 70:
		return "fairly easy"
	case score >= 60:
		return "standard"
	case score >= 50:
		return "fairly difficult"
	case score >= 30:
		return "difficult"
	default:
		return "very difficult"
	}
}
