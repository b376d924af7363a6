package scanner

import "strings"

// confusions maps glyphs Tesseract habitually misreads inside numbers.
var confusions = map[rune]rune{
	'o': '0', 'O': '0',
	'l': '1', 'I': '1',
	'|': '1',
	's': '5', 'S': '5',
}

// fixDigitConfusions repairs OCR digit/letter confusions, but only inside
// tokens that already contain a digit. Whole-word tokens such as price
// labels ("ATACADO") and product names pass through untouched, otherwise
// the label regexes downstream would stop matching.
func fixDigitConfusions(text string) string {
	fix := func(token string) string {
		if !strings.ContainsAny(token, "0123456789") {
			return token
		}
		return strings.Map(func(r rune) rune {
			if d, ok := confusions[r]; ok {
				return d
			}
			return r
		}, token)
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		fields := strings.Split(line, " ")
		for j, f := range fields {
			fields[j] = fix(f)
		}
		lines[i] = strings.Join(fields, " ")
	}
	return strings.Join(lines, "\n")
}

// splitLines trims and drops empty lines from raw OCR output.
func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// truncateRunes cuts s to at most n runes without splitting a multibyte char.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// snippet returns a shortened version of text for logging and storage.
func snippet(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
