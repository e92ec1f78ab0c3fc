// Package slug derives URL-safe identifiers from note titles.
//
// Generate is deterministic and side-effect free: the same title always
// produces the same slug. Cyrillic input is transliterated to ASCII, Latin
// diacritics are stripped via Unicode decomposition, and anything that still
// is not an ASCII letter or digit becomes a word boundary.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// cyrillic maps lowercase Cyrillic letters to their Latin transliteration.
// Multi-letter expansions (zh, ch, sch, ...) follow the common Russian
// transliteration convention.
var cyrillic = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d",
	'е': "e", 'ё': "e", 'ж': "zh", 'з': "z", 'и': "i",
	'й': "j", 'к': "k", 'л': "l", 'м': "m", 'н': "n",
	'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t",
	'у': "u", 'ф': "f", 'х': "h", 'ц': "c", 'ч': "ch",
	'ш': "sh", 'щ': "sch", 'ъ': "", 'ы': "y", 'ь': "",
	'э': "e", 'ю': "ju", 'я': "ja",
	// Ukrainian and Belarusian letters that show up in mixed input.
	'є': "e", 'і': "i", 'ї': "i", 'ґ': "g", 'ў': "u",
}

// stripMarks removes combining marks left over after NFD decomposition,
// turning e.g. "é" into "e".
var stripMarks = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Generate converts a title into a URL-safe slug: lowercase ASCII letters and
// digits separated by single hyphens. Titles with no convertible characters
// produce the empty string; callers decide whether that is acceptable.
func Generate(title string) string {
	lowered := strings.ToLower(title)

	var transliterated strings.Builder
	transliterated.Grow(len(lowered))
	for _, r := range lowered {
		if latin, ok := cyrillic[r]; ok {
			transliterated.WriteString(latin)
			continue
		}
		transliterated.WriteRune(r)
	}

	ascii, _, err := transform.String(stripMarks, transliterated.String())
	if err != nil {
		// Decomposition cannot fail on valid UTF-8; fall back to the
		// transliterated text and let the filter below drop the rest.
		ascii = transliterated.String()
	}

	var b strings.Builder
	b.Grow(len(ascii))
	pendingHyphen := false
	for _, r := range ascii {
		isWordRune := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isWordRune {
			if b.Len() > 0 {
				pendingHyphen = true
			}
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
