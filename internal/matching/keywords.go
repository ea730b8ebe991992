package matching

import (
	"regexp"
	"strconv"
	"strings"
)

// Keywords are the token sets extracted from one market title. The three
// exported sets are disjoint: entity tokens never appear in Words, and
// numeric tokens are tagged with their kind (year_, price_, percent_).
type Keywords struct {
	Entities map[string]struct{}
	Numbers  map[string]struct{}
	Words    map[string]struct{}

	// Precomputed views used by the similarity scorer.
	years     map[string]struct{}
	prices    map[string]struct{}
	otherNums map[string]struct{}
	allWords  map[string]struct{}
}

var (
	yearPattern    = regexp.MustCompile(`\b20\d{2}\b`)
	pricePattern   = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d+)?)\s*(k|m|b|thousand|million|billion)?|\b([\d,]+(?:\.\d+)?)\s*(k|m|b)?\s*(dollars|usd|million|billion)\b`)
	percentPattern = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*(?:%|percent)`)

	// entityPatterns map high-value subjects to one canonical token each,
	// so "BTC" and "Bitcoin" land on the same entity while Bitcoin and
	// Ethereum stay distinct.
	entityPatterns = []struct {
		re        *regexp.Regexp
		canonical string
	}{
		{regexp.MustCompile(`\btrump\b`), "trump"},
		{regexp.MustCompile(`\bbiden\b`), "biden"},
		{regexp.MustCompile(`\b(?:bitcoin|btc)\b`), "bitcoin"},
		{regexp.MustCompile(`\b(?:ethereum|eth)\b`), "ethereum"},
		{regexp.MustCompile(`\bcrypto(?:currency)?\b`), "crypto"},
		{regexp.MustCompile(`\bgta\b`), "gta"},
	}

	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

	stopWords = map[string]struct{}{
		"will": {}, "would": {}, "the": {}, "a": {}, "an": {}, "by": {},
		"in": {}, "on": {}, "at": {}, "of": {}, "to": {}, "be": {},
		"is": {}, "are": {}, "was": {}, "for": {}, "and": {}, "or": {},
		"vs": {}, "via": {}, "it": {}, "its": {}, "any": {}, "this": {},
		"that": {}, "with": {}, "does": {}, "do": {}, "from": {}, "as": {},
		"what": {}, "who": {}, "when": {}, "how": {}, "than": {},
	}
)

// Extract tokenizes a market title. It is pure and deterministic; the
// matcher caches results per market so each title is processed once per
// matching round.
func Extract(title string) *Keywords {
	kw := &Keywords{
		Entities:  make(map[string]struct{}),
		Numbers:   make(map[string]struct{}),
		Words:     make(map[string]struct{}),
		years:     make(map[string]struct{}),
		prices:    make(map[string]struct{}),
		otherNums: make(map[string]struct{}),
		allWords:  make(map[string]struct{}),
	}

	text := strings.ToLower(title)

	text = yearPattern.ReplaceAllStringFunc(text, func(match string) string {
		token := "year_" + match
		kw.Numbers[token] = struct{}{}
		kw.years[token] = struct{}{}
		return " "
	})

	text = pricePattern.ReplaceAllStringFunc(text, func(match string) string {
		token := "price_" + normalizeAmount(match)
		kw.Numbers[token] = struct{}{}
		kw.prices[token] = struct{}{}
		return " "
	})

	text = percentPattern.ReplaceAllStringFunc(text, func(match string) string {
		digits := percentPattern.FindStringSubmatch(match)[1]
		token := "percent_" + strings.ReplaceAll(digits, ".", "")
		kw.Numbers[token] = struct{}{}
		kw.otherNums[token] = struct{}{}
		return " "
	})

	for _, ep := range entityPatterns {
		if ep.re.MatchString(text) {
			kw.Entities[ep.canonical] = struct{}{}
			kw.allWords[ep.canonical] = struct{}{}
			text = ep.re.ReplaceAllString(text, " ")
		}
	}

	for _, token := range strings.Fields(nonAlnum.ReplaceAllString(text, " ")) {
		if len(token) <= 2 {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		if isDigits(token) {
			continue
		}
		kw.Words[token] = struct{}{}
		kw.allWords[token] = struct{}{}
	}

	return kw
}

// indexTokens returns every token of the market, the unit the inverted
// index is built over.
func (k *Keywords) indexTokens() []string {
	tokens := make([]string, 0, len(k.allWords)+len(k.Numbers))
	for t := range k.allWords {
		tokens = append(tokens, t)
	}
	for t := range k.Numbers {
		tokens = append(tokens, t)
	}
	return tokens
}

// normalizeAmount reduces a currency match to plain digits with k/m/b
// multipliers expanded, so "$100K" and "$100,000" produce one token.
func normalizeAmount(match string) string {
	cleaned := strings.ToLower(match)
	cleaned = strings.NewReplacer("$", "", ",", "", " ", "", "dollars", "", "usd", "").Replace(cleaned)

	multiplier := 1.0
	switch {
	case strings.HasSuffix(cleaned, "thousand"):
		cleaned, multiplier = strings.TrimSuffix(cleaned, "thousand"), 1e3
	case strings.HasSuffix(cleaned, "million"):
		cleaned, multiplier = strings.TrimSuffix(cleaned, "million"), 1e6
	case strings.HasSuffix(cleaned, "billion"):
		cleaned, multiplier = strings.TrimSuffix(cleaned, "billion"), 1e9
	case strings.HasSuffix(cleaned, "k"):
		cleaned, multiplier = strings.TrimSuffix(cleaned, "k"), 1e3
	case strings.HasSuffix(cleaned, "m"):
		cleaned, multiplier = strings.TrimSuffix(cleaned, "m"), 1e6
	case strings.HasSuffix(cleaned, "b"):
		cleaned, multiplier = strings.TrimSuffix(cleaned, "b"), 1e9
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return strings.ReplaceAll(strings.ReplaceAll(cleaned, ".", ""), "-", "")
	}

	return strings.ReplaceAll(strconv.FormatFloat(value*multiplier, 'f', -1, 64), ".", "")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
