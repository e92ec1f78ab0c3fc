package notes

import "strings"

// EscapeFTS5Query converts human search input into safe FTS5 MATCH syntax.
// Designed for a search box — bare words become prefix matches, quoted
// phrases match exactly, OR is honored, and a leading - excludes a term.
//
//	pub           → pub*
//	cat OR dog    → cat* OR dog*
//	"hello world" → "hello world"
//	-spam         → NOT spam*
//
// Adjacent terms combine with FTS5's implicit AND. Input that sanitizes to
// nothing yields an empty string, which callers treat as "no results".
func EscapeFTS5Query(query string) string {
	query = strings.ReplaceAll(query, "\x00", "")

	var terms []string
	for _, tok := range tokenizeSearch(query) {
		switch {
		case tok.isPhrase:
			if sanitizeFTS5Word(tok.text) != "" {
				terms = append(terms, `"`+strings.ReplaceAll(tok.text, `"`, `""`)+`"`)
			}
		case strings.EqualFold(tok.text, "OR"):
			terms = append(terms, "OR")
		case strings.HasPrefix(tok.text, "-") && len(tok.text) > 1:
			if clean := sanitizeFTS5Word(tok.text[1:]); clean != "" {
				terms = append(terms, "NOT "+clean+"*")
			}
		default:
			if clean := sanitizeFTS5Word(tok.text); clean != "" {
				terms = append(terms, clean+"*")
			}
		}
	}

	// NOT is a binary operator in FTS5: a group that consists only of NOT
	// terms, or starts with one, is a syntax error. Degrade such terms to
	// positive matches so the final query is always valid.
	var out []string
	hasPositiveInGroup := false
	for _, term := range terms {
		if term == "OR" {
			// Drop leading and doubled ORs.
			if len(out) == 0 || out[len(out)-1] == "OR" {
				continue
			}
			out = append(out, term)
			hasPositiveInGroup = false
			continue
		}
		if strings.HasPrefix(term, "NOT ") && !hasPositiveInGroup {
			term = strings.TrimPrefix(term, "NOT ")
		}
		out = append(out, term)
		if !strings.HasPrefix(term, "NOT ") {
			hasPositiveInGroup = true
		}
	}
	for len(out) > 0 && out[len(out)-1] == "OR" {
		out = out[:len(out)-1]
	}

	return strings.Join(out, " ")
}

type searchToken struct {
	text     string
	isPhrase bool
}

// tokenizeSearch splits search input into tokens, preserving quoted phrases.
func tokenizeSearch(input string) []searchToken {
	var tokens []searchToken
	i := 0
	for i < len(input) {
		if input[i] == ' ' || input[i] == '\t' {
			i++
			continue
		}
		if input[i] == '"' {
			end := strings.IndexByte(input[i+1:], '"')
			if end >= 0 {
				tokens = append(tokens, searchToken{text: input[i+1 : i+1+end], isPhrase: true})
				i = i + 1 + end + 1
			} else {
				// Unclosed quote: treat the rest as a phrase.
				tokens = append(tokens, searchToken{text: input[i+1:], isPhrase: true})
				i = len(input)
			}
			continue
		}
		end := i + 1
		for end < len(input) && input[end] != ' ' && input[end] != '\t' && input[end] != '"' {
			end++
		}
		tokens = append(tokens, searchToken{text: input[i:end]})
		i = end
	}
	return tokens
}

// sanitizeFTS5Word strips characters that cause FTS5 syntax errors, keeping
// letters, digits, underscore, and anything outside ASCII.
func sanitizeFTS5Word(word string) string {
	clean := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r > 127 {
			return r
		}
		return -1
	}, word)
	return strings.ToLower(clean)
}
