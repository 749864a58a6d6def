package lang

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gertd/go-pluralize"
)

const (
	DefaultPattern   = "%s"
	DefaultSeparator = ","
	DefaultOperator  = "and"
)

var plurals = pluralize.NewClient()

func Plural(word string) string {
	return plurals.Plural(word)
}

func Singular(word string) string {
	return plurals.Singular(word)
}

// Count renders "1 argument", "3 arguments".
func Count(n int, word string) string {
	return plurals.Pluralize(word, n, true)
}

var smallNumbers = []string{"no", "", "two", "three"}

// Card renders a cardinal phrase, spelling out the small numbers: "no swords", "an axe", "4 swords".
func Card(n int, word string) string {
	switch {
	case n == 1:
		return Indef(word)
	case n >= 0 && n < len(smallNumbers):
		return fmt.Sprintf("%s %s", smallNumbers[n], Plural(word))
	}
	return fmt.Sprintf("%d %s", n, Plural(word))
}

func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

var (
	silentH        = []string{"hour", "honest", "honor", "honour", "heir"}
	consonantSound = []string{"uni", "use", "usu", "one", "once", "eu"}
)

// Article returns the indefinite article for word.
func Article(word string) string {
	lower := strings.ToLower(word)
	for _, prefix := range silentH {
		if strings.HasPrefix(lower, prefix) {
			return "an"
		}
	}
	for _, prefix := range consonantSound {
		if strings.HasPrefix(lower, prefix) {
			return "a"
		}
	}
	if lower == "" {
		return "a"
	}
	if strings.ContainsRune("aeiou8", rune(lower[0])) {
		return "an"
	}
	return "a"
}

func Indef(word string) string {
	return fmt.Sprintf("%s %s", Article(word), word)
}

type Enumerator struct {
	Pattern   string
	Separator string
	Operator  string
}

// Do joins elements as an English list, with a serial comma for three or more.
func (e Enumerator) Do(elements ...string) string {
	pattern, separator, operator := DefaultPattern, DefaultSeparator, DefaultOperator
	if e.Pattern != "" {
		pattern = e.Pattern
	}
	if e.Separator != "" {
		separator = e.Separator
	}
	if e.Operator != "" {
		operator = e.Operator
	}
	formatted := make([]string, len(elements))
	for i, element := range elements {
		formatted[i] = fmt.Sprintf(pattern, element)
	}
	switch len(formatted) {
	case 0:
		return ""
	case 1:
		return formatted[0]
	case 2:
		return fmt.Sprintf("%s %s %s", formatted[0], operator, formatted[1])
	}
	last := len(formatted) - 1
	return fmt.Sprintf("%s%s %s %s", strings.Join(formatted[:last], separator+" "), separator, operator, formatted[last])
}
