// Package merchant normalizes noisy bank transaction descriptions into
// merchant names. Two normalizations exist: Display produces a readable
// merchant for a single record, Key produces a compact grouping key used to
// cluster transactions from the same counterparty despite descriptive
// variation ("NETFLIX.COM", "Netflix *1234" -> "netflix").
//
// Both are built as ordered rule chains so individual rules can be tested
// and reordered in isolation.
package merchant

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// rule is one step of a normalization chain.
type rule struct {
	name  string
	apply func(string) string
}

func run(chain []rule, s string) string {
	for _, r := range chain {
		s = r.apply(s)
	}
	return s
}

func stripRegexp(re *regexp.Regexp) func(string) string {
	return func(s string) string { return re.ReplaceAllString(s, "") }
}

func replaceRegexp(re *regexp.Regexp, with string) func(string) string {
	return func(s string) string { return re.ReplaceAllString(s, with) }
}

var (
	trailingDigitRun = regexp.MustCompile(`\s+\d{4,}.*$`)
	trailingHashRef  = regexp.MustCompile(`\s+#\d+.*$`)
	trailingStarRef  = regexp.MustCompile(`\s+\*+\d+.*$`)

	starRef       = regexp.MustCompile(`\*\d+`)
	hashRef       = regexp.MustCompile(`#\d+`)
	longDigitRun  = regexp.MustCompile(`\d{6,}`)
	domainSuffix  = regexp.MustCompile(`\.(com|net|org)`)
	leadingPrefix = regexp.MustCompile(`^(pos|ach|debit|purchase)\s+`)
	nonAlnum      = regexp.MustCompile(`[^a-z0-9\s]`)

	// Corporate suffixes are stripped one at a time, in this order, so
	// stacked suffixes ("foo usa llc") reduce fully. Earlier strips can
	// leave trailing whitespace, so the anchors tolerate it.
	incSuffix = regexp.MustCompile(`\s+inc\.?\s*$`)
	llcSuffix = regexp.MustCompile(`\s+llc\.?\s*$`)
	ltdSuffix = regexp.MustCompile(`\s+ltd\.?\s*$`)
	usaSuffix = regexp.MustCompile(`\s+usa\s*$`)
	usSuffix  = regexp.MustCompile(`\s+us\s*$`)
)

// displayPrefixes are transaction-type markers banks prepend to descriptions.
var displayPrefixes = []string{"POS ", "ACH ", "DEBIT ", "CREDIT ", "PURCHASE ", "CHECKCARD "}

// displayChain cleans a description into a readable merchant name.
var displayChain = []rule{
	{"uppercase", strings.ToUpper},
	{"strip-type-prefix", func(s string) string {
		for _, p := range displayPrefixes {
			if strings.HasPrefix(s, p) {
				s = s[len(p):]
			}
		}
		return s
	}},
	{"strip-trailing-digits", stripRegexp(trailingDigitRun)},
	{"strip-trailing-hash-ref", stripRegexp(trailingHashRef)},
	{"strip-trailing-star-ref", stripRegexp(trailingStarRef)},
	{"collapse-whitespace", collapse},
	{"titlecase", Title},
	{"truncate", truncate(200)},
}

// keyChain reduces a description to a stable lower-case grouping key.
var keyChain = []rule{
	{"lowercase", strings.ToLower},
	{"strip-star-ref", stripRegexp(starRef)},
	{"strip-hash-ref", stripRegexp(hashRef)},
	{"strip-long-digits", stripRegexp(longDigitRun)},
	{"strip-domain-suffix", stripRegexp(domainSuffix)},
	{"strip-inc", stripRegexp(incSuffix)},
	{"strip-llc", stripRegexp(llcSuffix)},
	{"strip-ltd", stripRegexp(ltdSuffix)},
	{"strip-usa", stripRegexp(usaSuffix)},
	{"strip-us", stripRegexp(usSuffix)},
	{"strip-type-prefix", stripRegexp(leadingPrefix)},
	{"drop-non-alnum", replaceRegexp(nonAlnum, " ")},
	{"collapse-whitespace", collapse},
	{"truncate", truncate(50)},
}

// Display derives a readable merchant name from a raw description.
func Display(description string) string {
	return run(displayChain, description)
}

// Key derives the grouping key used to cluster a merchant's transactions.
func Key(description string) string {
	return run(keyChain, description)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate caps a string at n characters, never splitting a rune.
func truncate(n int) func(string) string {
	return func(s string) string {
		runes := []rune(s)
		if len(runes) > n {
			return string(runes[:n])
		}
		return s
	}
}

// Title upper-cases the first letter of each word and lower-cases the rest.
func Title(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		lower := strings.ToLower(w)
		r, size := utf8.DecodeRuneInString(lower)
		words[i] = strings.ToUpper(string(r)) + lower[size:]
	}
	return strings.Join(words, " ")
}
