package ticket

import (
	"sort"
	"strings"
)

// WildcardKey is the pattern lineage for tickets with no distinguishing
// features (no labels, no priority, generic title). It is kept separate
// from every specific-feature lineage so that generic outcomes never
// dilute specific signal.
const WildcardKey = "*"

// maxTitleTokens caps how many normalized title tokens participate in the
// feature key, keeping keys stable for verbose titles.
const maxTitleTokens = 6

// Features is the derived shape of a ticket used for pattern lookup:
// label set, priority bucket, and normalized title tokens.
type Features struct {
	Priority    Priority `json:"priority,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	TitleTokens []string `json:"title_tokens,omitempty"`
}

// ExtractFeatures derives the feature set for a ticket. The derivation is
// deterministic: labels and tokens are sorted, so the same ticket always
// produces the same key.
func ExtractFeatures(t Ticket) Features {
	f := Features{Priority: t.Priority}

	if len(t.Labels) > 0 {
		f.Labels = append([]string(nil), t.Labels...)
		sort.Strings(f.Labels)
	}
	f.TitleTokens = tokenizeTitle(t.Title)
	return f
}

// Empty reports whether the feature set carries no signal at all.
func (f Features) Empty() bool {
	return f.Priority == "" && len(f.Labels) == 0 && len(f.TitleTokens) == 0
}

// Key returns the most specific pattern key for this feature set, or
// WildcardKey when the set is empty. Learned outcomes are always recorded
// under this key.
func (f Features) Key() string {
	if f.Empty() {
		return WildcardKey
	}
	return strings.Join([]string{
		string(f.Priority),
		strings.Join(f.Labels, ","),
		strings.Join(f.TitleTokens, ","),
	}, ":")
}

// Keys returns the candidate pattern keys for lookup, most specific first:
// the full key, then priority+labels, then the priority bucket alone.
// Empty components collapse duplicates away. The wildcard lineage is only
// a candidate when the feature set is entirely empty.
func (f Features) Keys() []string {
	if f.Empty() {
		return []string{WildcardKey}
	}
	keys := []string{f.Key()}
	add := func(k string) {
		for _, seen := range keys {
			if seen == k {
				return
			}
		}
		keys = append(keys, k)
	}
	if len(f.TitleTokens) > 0 && (f.Priority != "" || len(f.Labels) > 0) {
		add(string(f.Priority) + ":" + strings.Join(f.Labels, ",") + ":")
	}
	if f.Priority != "" && (len(f.Labels) > 0 || len(f.TitleTokens) > 0) {
		add(string(f.Priority) + "::")
	}
	return keys
}

// titleStopwords are tokens too common in support titles to discriminate.
var titleStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "cannot": {}, "cant": {},
	"error": {}, "for": {}, "help": {}, "in": {}, "is": {}, "issue": {},
	"it": {}, "my": {}, "not": {}, "of": {}, "on": {}, "please": {},
	"problem": {}, "the": {}, "to": {}, "when": {}, "with": {}, "working": {},
}

func tokenizeTitle(title string) []string {
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, tok := range fields {
		if len(tok) < 3 {
			continue
		}
		if _, stop := titleStopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	if len(tokens) > maxTitleTokens {
		tokens = tokens[:maxTitleTokens]
	}
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}
