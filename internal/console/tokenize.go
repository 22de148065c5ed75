package console

import "strings"

// Command is a tokenized console line.
type Command struct {
	Raw  string
	Verb string
	Args []string
}

// Tokenize trims raw and splits it on runs of whitespace. The verb is
// lower-cased; ok is false for blank input.
func Tokenize(raw string) (Command, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Command{}, false
	}
	fields := strings.Fields(trimmed)
	return Command{
		Raw:  trimmed,
		Verb: strings.ToLower(fields[0]),
		Args: fields[1:],
	}, true
}

// args consumes arguments left to right.
type args struct {
	rest []string
}

// next returns the next token, or "" and false when none remain.
func (a *args) next() (string, bool) {
	if len(a.rest) == 0 {
		return "", false
	}
	tok := a.rest[0]
	a.rest = a.rest[1:]
	return tok, true
}

// nextLower is next, lower-cased.
func (a *args) nextLower() (string, bool) {
	tok, ok := a.next()
	return strings.ToLower(tok), ok
}

// text rejoins the remaining tokens with single spaces.
func (a *args) text() string {
	out := strings.Join(a.rest, " ")
	a.rest = nil
	return out
}

// NormalizeCaseNumber strips one leading '#' and surrounding whitespace.
func NormalizeCaseNumber(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(s, "#"))
}
