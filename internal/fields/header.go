package fields

import (
	"strings"
	"sync"
	"unicode"
)

// FuzzyKey reduces a header to lowercase alphanumerics so "Business Name",
// "business_name", and "BUSINESS-NAME" all collide.
func FuzzyKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var (
	headerIndexOnce sync.Once
	headerIndex     map[string]*Field
)

// MatchHeader resolves a CSV column header onto a schema field,
// case/space/punctuation-insensitively. When two aliases collide under
// FuzzyKey, schema declaration order wins.
func MatchHeader(header string) (*Field, bool) {
	headerIndexOnce.Do(func() {
		headerIndex = make(map[string]*Field)
		for i := range Schema {
			f := &Schema[i]
			for _, alias := range f.Aliases {
				key := FuzzyKey(alias)
				if _, taken := headerIndex[key]; !taken {
					headerIndex[key] = f
				}
			}
		}
	})

	f, ok := headerIndex[FuzzyKey(header)]
	return f, ok
}
