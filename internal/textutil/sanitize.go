package textutil

import "strings"

// invalidRunes are runes that cannot appear in a file name on the strictest
// target filesystem (NTFS). Exclamation marks, both ASCII and fullwidth, are
// stripped as well because they confuse downstream shell tooling.
const invalidRunes = `<>:"/\|?*` + "!！"

// SanitizeFileName strips filesystem-unsafe characters from name, collapses
// runs of whitespace to a single space, and trims trailing dots and spaces.
// The result of sanitizing an already-sanitized name is the name itself.
// Returns "Unnamed" when nothing survives.
func SanitizeFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if strings.ContainsRune(invalidRunes, r) {
			continue
		}
		b.WriteRune(r)
	}
	s := strings.Join(strings.Fields(b.String()), " ")
	s = strings.TrimRight(s, ".")
	s = strings.TrimSpace(s)
	if s == "" {
		return "Unnamed"
	}
	return s
}

// NormalizeVote folds a tag value for majority-vote comparison: whitespace
// runs collapse to one space, surrounding whitespace is removed, letters are
// lowercased. Display values keep their original casing; only vote keys are
// normalized.
func NormalizeVote(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}
