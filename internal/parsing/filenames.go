package parsing

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"chansync/internal/domain/consts"
)

var (
	multiDot      = regexp.MustCompile(`\.{2,}`)
	nonPortable   = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s\p{Zs}\-]`)
	spaceOrDash   = regexp.MustCompile(`[\s\p{Zs}]+|-+`)
	multiUnder    = regexp.MustCompile(`_+`)
	nonAlphaNumer = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// fallbackName is used when sanitizing leaves nothing of the name.
const fallbackName = "untitled"

// CleanFilename reduces a filename to a portable form.
//
// Letters and digits of any script are kept, punctuation and symbols are
// dropped, whitespace and dash runs become single underscores, and the name
// part is capped in bytes on a rune boundary. The
// result is stable: CleanFilename(CleanFilename(s)) == CleanFilename(s).
func CleanFilename(filename string) string {
	filename = strings.Trim(strings.TrimSpace(filename), ".")
	filename = multiDot.ReplaceAllString(filename, ".")

	name, ext := filename, ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		name, ext = filename[:i], filename[i+1:]
	}

	name = nonPortable.ReplaceAllString(name, "")
	name = spaceOrDash.ReplaceAllString(name, "_")
	name = multiUnder.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if len(name) > consts.MaxFilenameLength {
		name = strings.TrimRight(truncateBytes(name, consts.MaxFilenameLength), "_")
	}
	if name == "" {
		name = fallbackName
	}

	ext = nonAlphaNumer.ReplaceAllString(ext, "")
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
