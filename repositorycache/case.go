package repositorycache

import (
	"strings"
	"unicode"
)

// toSnake turns a reflected type name into a key namespace. Type arguments are
// dropped ("ListResult[pkg.Employee]" becomes "list_result"), word boundaries follow
// case changes and digit runs, and any other rune separates words.
func toSnake(name string) string {
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}

	runes := []rune(name)
	words := make([]string, 0, 4)
	start := -1
	cut := func(end int) {
		if start >= 0 && end > start {
			words = append(words, strings.ToLower(string(runes[start:end])))
		}
		start = -1
	}

	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			cut(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}

		prev := runes[i-1]
		acronymEnd := unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
		switch {
		case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev) || acronymEnd):
			cut(i)
			start = i
		case unicode.IsDigit(r) != unicode.IsDigit(prev) && !unicode.IsUpper(r):
			cut(i)
			start = i
		}
	}
	cut(len(runes))

	return strings.Join(words, "_")
}
