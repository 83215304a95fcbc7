// Package timeutil derives timestamps from path and token strings, and
// converts between the two timestamp representations the resolver uses:
// local-zone time.Time for presentation, and float64 epoch seconds for
// index persistence and interval arithmetic.
package timeutil

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ToLocal normalizes t to the local zone. A naive (already-local, since Go
// has no "naive" concept) value is returned as-is; an aware value is
// converted via time.In.
func ToLocal(t time.Time) time.Time {
	return t.In(time.Local)
}

// EpochToLocal converts epoch seconds (as persisted in an index row) to a
// local time.Time.
func EpochToLocal(epoch float64) time.Time {
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).In(time.Local)
}

// LocalToEpoch converts a local time.Time to epoch seconds.
func LocalToEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// tokenize splits s on the separator set: '/', '.', '_', whitespace, and
// '-' only when the '-' is adjacent to a letter. It is shared by the
// default extractor and by the fuzzy resolver's path-key derivation, which
// must agree on what counts as a separator.
func tokenize(s string) []string {
	runes := []rune(s)
	var tokens []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, string(cur))
			cur = cur[:0]
		}
	}

	for i, r := range runes {
		switch {
		case r == '/' || r == '.' || r == '_' || unicode.IsSpace(r):
			flush()
		case r == '-':
			prevLetter := i > 0 && unicode.IsLetter(runes[i-1])
			nextLetter := i+1 < len(runes) && unicode.IsLetter(runes[i+1])
			if prevLetter || nextLetter {
				flush()
			} else {
				cur = append(cur, r)
			}
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return tokens
}

// Tokenize exposes the separator rule for callers outside this package
// (the fuzzy resolver's path-key derivation).
func Tokenize(s string) []string {
	return tokenize(s)
}

func isTimeLike(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if !(r >= '0' && r <= '9') && r != ':' && r != '-' {
			return false
		}
	}
	return true
}

// IsTimeLikeToken reports whether tok matches ^[0-9:-]+$, the rule the
// fuzzy resolver uses to decide which tokens are NOT part of a path-key.
func IsTimeLikeToken(tok string) bool {
	return isTimeLike(tok)
}

// layouts is the list of date/time layouts the lenient parser tries, from
// most to least specific. Candidate strings are tried both as given (space
// joined) and with whitespace collapsed out, against both the layout and
// the same layout with its whitespace collapsed.
var layouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"20060102 150405",
	"20060102150405",
	"20060102",
	"01-02-2006 15:04:05",
	"01-02-2006",
	"2006 01 02 15 04 05",
	"2006 01 02",
	"06-01-02",
	"2006:01:02 15:04:05",
	"2006:01:02",
	"15:04:05",
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// lenientParse tries the known layouts against s in fuzzy mode. Its
// default fill is treated as "year <= 1" (Go's zero time reference year),
// matching the minimum-representable-timestamp fill described in the
// design: if nothing beyond the fill was recovered, parsing is considered
// to have failed outright rather than to have succeeded with a bogus year.
func lenientParse(s string) (time.Time, bool) {
	candidates := []string{s, collapse(s)}
	for _, cand := range candidates {
		for _, layout := range layouts {
			for _, l := range []string{layout, collapse(layout)} {
				if t, err := time.ParseInLocation(l, cand, time.Local); err == nil {
					if t.Year() <= 1 {
						continue
					}
					return t, true
				}
			}
		}
	}
	return time.Time{}, false
}

// ExtractDefault implements the default heuristic from section 4.1: an
// '@'-prefixed epoch shortcut, else a token-based fuzzy parse of the
// retained time-like tokens, else a last-resort interpretation of the
// first two retained tokens as a "seconds.fraction" epoch value.
func ExtractDefault(s string) (time.Time, bool) {
	if strings.HasPrefix(s, "@") {
		if f, err := strconv.ParseFloat(s[1:], 64); err == nil {
			return ToLocal(EpochToLocal(f)), true
		}
	}

	tokens := tokenize(s)
	var timeTokens []string
	for _, t := range tokens {
		if isTimeLike(t) {
			timeTokens = append(timeTokens, t)
		}
	}
	if len(timeTokens) == 0 {
		return time.Time{}, false
	}

	joined := strings.Join(timeTokens, " ")
	if t, ok := lenientParse(joined); ok {
		return ToLocal(t), true
	}

	if len(timeTokens) >= 2 {
		if f, err := strconv.ParseFloat(timeTokens[0]+"."+timeTokens[1], 64); err == nil {
			return ToLocal(EpochToLocal(f)), true
		}
	}

	return time.Time{}, false
}
