package launch

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 100

var (
	slugRe      = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify folds name to lowercase ASCII words joined by hyphens:
// "My Cool App!" -> "my-cool-app", "Café Ñandú" -> "cafe-nandu".
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	s := slugInvalid.ReplaceAllString(strings.ToLower(folded), "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLen-8 {
		s = strings.TrimRight(s[:maxSlugLen-8], "-")
	}
	if s == "" {
		s = "app"
	}
	return s
}

// ValidSlug reports whether s is an acceptable explicit slug.
func ValidSlug(s string) bool {
	return len(s) <= maxSlugLen && slugRe.MatchString(s)
}

// slugCandidate returns base for n == 0 and base-n otherwise.
func slugCandidate(base string, n int) string {
	if n == 0 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}
