package output

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxSlugRunes keeps filenames well under common 255-byte limits even for
// multi-byte titles.
const maxSlugRunes = 80

// windowsReserved are device names that cannot be used as file names on Windows.
var windowsReserved = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true, "com5": true,
	"com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true, "lpt5": true,
	"lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// Slugify turns a page title into a filesystem-safe name without extension.
//
// Diacritics are folded ("Café" becomes "Cafe"), letters and digits of any
// script are kept, runs of other characters become a single underscore, and
// the result is trimmed and truncated. An empty result becomes "page".
func Slugify(title string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		title,
	)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '.':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}

	slug := b.String()
	if utf8.RuneCountInString(slug) > maxSlugRunes {
		slug = string([]rune(slug)[:maxSlugRunes])
	}
	slug = strings.Trim(slug, "._-")
	if slug == "" {
		return "page"
	}
	if windowsReserved[strings.ToLower(slug)] {
		slug += "_"
	}
	return slug
}

// slugAllocator hands out unique filenames for one run. Names are compared
// case-insensitively so the output survives case-insensitive filesystems.
type slugAllocator struct {
	used map[string]bool
}

func newSlugAllocator() *slugAllocator {
	return &slugAllocator{used: make(map[string]bool)}
}

// allocate returns "<slug>.md", appending _2, _3, ... on collision.
func (a *slugAllocator) allocate(title string) string {
	base := Slugify(title)
	name := base + pageExt
	for n := 2; a.used[strings.ToLower(name)]; n++ {
		name = fmt.Sprintf("%s_%d%s", base, n, pageExt)
	}
	a.used[strings.ToLower(name)] = true
	return name
}
