package classify

import (
	"regexp"
	"strings"
)

// Whole-word label matchers. Case-insensitive so "Subject Identifier",
// "subject identifier", and "SUBJECT IDENTIFIER" all count.
var (
	wordIdentifier = regexp.MustCompile(`(?i)\bIdentifier\b`)
	wordAge        = regexp.MustCompile(`(?i)\bAge\b`)
	wordDate       = regexp.MustCompile(`(?i)\bDate\b`)
)

// dateFormats are display format families that hold a calendar date and
// nothing else. A variable wearing one of these is protected: it is never
// removed, whatever the name and label heuristics or the overrides say.
// Date-time formats (E8601DT, DATETIME) are deliberately absent.
var dateFormats = map[string]bool{
	"DATE":     true,
	"YYMMDD":   true,
	"DDMMYY":   true,
	"MMDDYY":   true,
	"E8601DA":  true,
	"JULIAN":   true,
	"WEEKDATE": true,
	"WORDDATE": true,
}

// LabelSaysIdentifier reports whether a label contains the whole word
// "Identifier".
func LabelSaysIdentifier(label string) bool {
	return wordIdentifier.MatchString(label)
}

// NameSaysIdentifier reports whether a variable name ends in "ID".
func NameSaysIdentifier(name string) bool {
	return hasSuffixFold(name, "ID")
}

// LabelSaysAge reports whether a label contains the whole word "Age".
func LabelSaysAge(label string) bool {
	return wordAge.MatchString(label)
}

// NameSaysAge reports whether a variable name starts with "AGE".
func NameSaysAge(name string) bool {
	return len(name) >= 3 && strings.EqualFold(name[:3], "AGE")
}

// LabelSaysDate reports whether a label contains the whole word "Date".
func LabelSaysDate(label string) bool {
	return wordDate.MatchString(label)
}

// NameSaysDate reports whether a variable name ends in "DT". Names ending
// in "DTM" are date-times, not dates.
func NameSaysDate(name string) bool {
	return hasSuffixFold(name, "DT") && !NameSaysDatetime(name)
}

// NameSaysDatetime reports whether a variable name ends in "DTM".
func NameSaysDatetime(name string) bool {
	return hasSuffixFold(name, "DTM")
}

// HasDateFormat reports whether a display format belongs to a fixed
// date-only family. Width and decimal suffixes are ignored, so "DATE9."
// and "YYMMDD10." both qualify.
func HasDateFormat(format string) bool {
	f := strings.ToUpper(strings.TrimSpace(format))
	f = strings.TrimSuffix(f, ".")
	f = strings.TrimRight(f, "0123456789.")
	return dateFormats[f]
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}
