package store

import (
	"path/filepath"
	"regexp"
)

// RegexMatcher wraps a compiled regular expression for the optional regex
// filters accepted by Files/Dirs.
type RegexMatcher struct {
	re *regexp.Regexp
}

// NewRegexMatcher compiles pattern into a RegexMatcher.
func NewRegexMatcher(pattern string) (*RegexMatcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &RegexMatcher{re: re}, nil
}

// MatchString reports whether s matches the compiled pattern.
func (m *RegexMatcher) MatchString(s string) bool {
	if m == nil || m.re == nil {
		return true
	}
	return m.re.MatchString(s)
}

// globMatch reports whether name matches the shell glob pattern, treating
// an empty pattern as matching everything.
func globMatch(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}
