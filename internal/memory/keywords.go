package memory

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "what": {}, "who": {}, "why": {},
	"how": {}, "are": {}, "was": {}, "were": {}, "has": {}, "have": {}, "had": {},
	"does": {}, "did": {}, "can": {}, "could": {}, "should": {}, "would": {},
	"will": {}, "this": {}, "that": {}, "these": {}, "those": {}, "there": {},
	"from": {}, "into": {}, "about": {}, "our": {}, "your": {}, "you": {},
	"they": {}, "them": {}, "their": {}, "its": {}, "not": {}, "but": {},
	"any": {}, "all": {}, "is": {}, "my": {}, "me": {}, "we": {}, "of": {},
	"tell": {}, "please": {}, "which": {}, "when": {}, "where": {}, "then": {},
}

// Keywords reduces free text to the distinct lowercase terms worth matching
// on. Dots inside a term are kept so statute cites like "516.120" survive.
func Keywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '%' && r != '_'
	})
	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		f = strings.Trim(f, ".")
		if len(f) < 3 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
