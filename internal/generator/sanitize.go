// internal/generator/sanitize.go
package generator

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"github.com/schr45-ship-it/shaalkal-socket-server/internal/models"
)

// The session core trusts generated questions to be clean: deduplicated,
// length-clamped, exactly 4 distinct options with a valid correct index.
// SanitizeQuestions enforces that contract regardless of what the model
// actually produced.

const (
	maxOptionRunes   = 80
	maxQuestionRunes = 200
	optionCount      = 4

	minDurationSec     = 5
	maxDurationSec     = 120
	defaultDurationSec = 15
)

var (
	optionPrefixRe  = regexp.MustCompile(`^([-–—•]|\d+\.|\(?\d+\)?|[A-Da-d]\.|[A-Da-d]\)|\([A-Da-d]\))\s*`)
	optionLabelRe   = regexp.MustCompile(`(?i)^\s*(correct:?|incorrect:?|true:?|false:?|wrong:?|answer:?)\s*`)
	questionLabelRe = regexp.MustCompile(`(?i)^question:?\s*`)
	spacesRe        = regexp.MustCompile(`\s+`)
	quotesRe        = regexp.MustCompile("[“”\"'`]+")
	wrappersRe      = regexp.MustCompile(`[()\[\]{}*]+`)
	dashVariantsRe  = regexp.MustCompile(`[–—‑−]`)
	dashSpacingRe   = regexp.MustCompile(`\s*-\s*`)
	nonWordRe       = regexp.MustCompile(`[^\p{L}\p{N}\s-]`)

	// Years between 1000 and 2099, optionally a range.
	yearSpanRe  = regexp.MustCompile(`(1\d{3}|20\d{2})(?:\s*-\s*(1\d{3}|20\d{2}))?`)
	yearLooseRe = regexp.MustCompile(`(1\d{3}|20\d{2})(?:\D+(1\d{3}|20\d{2}))?`)
)

// clipRunes truncates s to at most n runes.
func clipRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

// sanitizeOption strips bullets, numbering, letter labels, and correctness
// labels from a raw option, collapses whitespace, and clamps its length.
func sanitizeOption(s string) string {
	t := strings.TrimSpace(s)
	t = optionPrefixRe.ReplaceAllString(t, "")
	t = optionLabelRe.ReplaceAllString(t, "")
	t = spacesRe.ReplaceAllString(strings.TrimSpace(t), " ")
	t = clipRunes(t, maxOptionRunes)
	if t == "" {
		return "Option"
	}
	return t
}

// canon reduces an option to a canonical comparison key: lowercased,
// punctuation-stripped, dashes unified, and years or year ranges normalized
// so "1947 - 1949" and "1947–1949" collide.
func canon(s string) string {
	t := strings.ToLower(sanitizeOption(s))
	t = quotesRe.ReplaceAllString(t, "")
	t = wrappersRe.ReplaceAllString(t, "")
	t = dashVariantsRe.ReplaceAllString(t, "-")
	t = dashSpacingRe.ReplaceAllString(t, "-")
	if m := yearSpanRe.FindStringSubmatch(t); m != nil {
		y1, _ := strconv.Atoi(m[1])
		if m[2] != "" {
			y2, _ := strconv.Atoi(m[2])
			if y2 < y1 {
				y1, y2 = y2, y1
			}
			return fmt.Sprintf("%d-%d", y1, y2)
		}
		return strconv.Itoa(y1)
	}
	return t
}

// topicKeywords extracts up to 12 distinct words (3+ runes) from the topic
// text so they can be stripped out of generated questions and options.
func topicKeywords(topic string) []string {
	cleaned := nonWordRe.ReplaceAllString(topic, " ")
	seen := make(map[string]bool)
	var words []string
	for _, w := range strings.Fields(cleaned) {
		if len([]rune(w)) < 3 || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
		if len(words) == 12 {
			break
		}
	}
	return words
}

// stripTopic removes the word "quiz" and the topic keywords from s so the
// model cannot echo the host's instructions back as answer text.
func stripTopic(s string, keywords []string) string {
	out := regexp.MustCompile(`(?i)\bquiz\b`).ReplaceAllString(s, "")
	for _, w := range keywords {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(w))
		out = re.ReplaceAllString(out, "")
	}
	return strings.TrimSpace(spacesRe.ReplaceAllString(out, " "))
}

// yearDistractors fabricates plausible wrong answers for year-based
// questions by shifting the correct year (or range), falling back to generic
// fillers when the correct answer has no year in it.
func yearDistractors(correctText string, need int, seen map[string]int) []string {
	var out []string
	if m := yearLooseRe.FindStringSubmatch(correctText); m != nil {
		y1, _ := strconv.Atoi(m[1])
		y2 := 0
		if m[2] != "" {
			y2, _ = strconv.Atoi(m[2])
		}
		for _, shift := range []int{-7, -5, -3, 3, 5, 7, 10, -10} {
			if len(out) >= need {
				break
			}
			var candidate string
			if y2 != 0 {
				candidate = fmt.Sprintf("%d-%d", y1+shift, y2+shift)
			} else {
				candidate = strconv.Itoa(y1 + shift)
			}
			if _, dup := seen[canon(candidate)]; !dup {
				out = append(out, candidate)
			}
		}
	}
	fillers := []string{"A different era", "An alternative choice", "A different figure", "Another version"}
	for len(out) < need {
		candidate := fillers[len(out)%len(fillers)]
		if _, dup := seen[canon(candidate)]; !dup {
			out = append(out, candidate)
		} else {
			break
		}
	}
	return out
}

// SanitizeQuestions cleans a generated question list down to at most count
// questions, each with exactly 4 distinct options, a correct index that
// survives deduplication and shuffling, and a duration clamped to
// [5,120] seconds.
func SanitizeQuestions(rng *rand.Rand, list []models.QuestionSpec, count int, topic string) []models.QuestionSpec {
	keywords := topicKeywords(topic)
	if len(list) > count {
		list = list[:count]
	}

	out := make([]models.QuestionSpec, 0, len(list))
	for _, q := range list {
		text := questionLabelRe.ReplaceAllString(strings.TrimSpace(q.Text), "")
		text = clipRunes(text, maxQuestionRunes)
		text = stripTopic(text, keywords)
		if text == "" {
			text = "Question"
		}

		raw := q.Options
		if len(raw) > optionCount {
			raw = raw[:optionCount]
		}
		correct := 0
		if q.CorrectIndex != nil {
			correct = *q.CorrectIndex
		}
		if correct < 0 {
			correct = 0
		}
		if correct > optionCount-1 {
			correct = optionCount - 1
		}

		sanitized := make([]string, len(raw))
		for i, o := range raw {
			sanitized[i] = sanitizeOption(o)
		}
		correctVal := ""
		if correct < len(sanitized) {
			correctVal = sanitized[correct]
		} else if len(sanitized) > 0 {
			correctVal = sanitized[0]
		}

		// Deduplicate, preserving first occurrence; if the duplicate was the
		// correct option, remap to its first instance.
		seen := make(map[string]int)
		var unique []string
		for i, o := range sanitized {
			k := canon(o)
			if at, dup := seen[k]; dup {
				if i == correct {
					correct = at
				}
				continue
			}
			seen[k] = len(unique)
			if i == correct {
				correct = len(unique)
			}
			unique = append(unique, o)
		}
		if len(unique) == 0 {
			if correctVal == "" {
				correctVal = "Option"
			}
			unique = append(unique, correctVal)
			seen[canon(correctVal)] = 0
			correct = 0
		}

		// Pad to 4 with smart distractors, then generic fillers.
		if len(unique) < optionCount {
			for _, add := range yearDistractors(text, optionCount-len(unique), seen) {
				add = sanitizeOption(add)
				k := canon(add)
				if _, dup := seen[k]; !dup {
					seen[k] = len(unique)
					unique = append(unique, add)
				}
			}
			for _, f := range []string{"Option A", "Option B", "Option C", "Option D"} {
				if len(unique) >= optionCount {
					break
				}
				k := canon(f)
				if _, dup := seen[k]; !dup {
					seen[k] = len(unique)
					unique = append(unique, f)
				}
			}
		}

		options := unique
		if len(options) > optionCount {
			options = options[:optionCount]
		}
		for i, o := range options {
			if stripped := stripTopic(o, keywords); stripped != "" {
				options[i] = stripped
			} else {
				options[i] = "Option"
			}
		}
		if correct < 0 || correct >= len(options) {
			correct = 0
		}

		// Shuffle while keeping track of the correct index.
		idxs := rng.Perm(len(options))
		shuffled := make([]string, len(options))
		newCorrect := 0
		for to, from := range idxs {
			shuffled[to] = options[from]
			if from == correct {
				newCorrect = to
			}
		}
		options = shuffled
		correct = newCorrect

		// Final enforcement: exactly 4 unique options.
		finalSeen := make(map[string]int)
		var final []string
		finalCorrect := 0
		for i, o := range options {
			k := canon(o)
			if at, dup := finalSeen[k]; dup {
				if i == correct {
					finalCorrect = at
				}
				continue
			}
			finalSeen[k] = len(final)
			if i == correct {
				finalCorrect = len(final)
			}
			final = append(final, o)
			if len(final) == optionCount {
				break
			}
		}
		for filler := 1; len(final) < optionCount; filler++ {
			candidate := fmt.Sprintf("Option %d", filler)
			k := canon(candidate)
			if _, dup := finalSeen[k]; !dup {
				finalSeen[k] = len(final)
				final = append(final, candidate)
			}
		}

		duration := q.DurationSec
		if duration == 0 {
			duration = defaultDurationSec
		}
		if duration < minDurationSec {
			duration = minDurationSec
		}
		if duration > maxDurationSec {
			duration = maxDurationSec
		}

		correctIdx := finalCorrect
		out = append(out, models.QuestionSpec{
			Text:         text,
			Options:      final,
			CorrectIndex: &correctIdx,
			DurationSec:  duration,
		})
	}
	return out
}
