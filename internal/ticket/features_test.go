package ticket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFeaturesDeterministic(t *testing.T) {
	a := Ticket{
		Number:      1,
		Title:       "Database timeout during login",
		Priority:    PriorityP1,
		Labels:      []string{"db", "auth"},
		CreatedTime: time.Now(),
	}
	b := a
	b.Labels = []string{"auth", "db"} // same set, different order

	fa := ExtractFeatures(a)
	fb := ExtractFeatures(b)
	assert.Equal(t, fa.Key(), fb.Key())
	assert.Equal(t, []string{"auth", "db"}, fa.Labels)
}

func TestExtractFeaturesTokenization(t *testing.T) {
	f := ExtractFeatures(Ticket{Title: "Cannot login, the LOGIN page is not working!!"})

	// Stopwords, short tokens, and duplicates are gone; tokens are sorted.
	assert.Equal(t, []string{"login", "page"}, f.TitleTokens)
}

func TestExtractFeaturesTokenCap(t *testing.T) {
	f := ExtractFeatures(Ticket{Title: "alpha bravo charlie delta echo foxtrot golf hotel"})
	assert.Len(t, f.TitleTokens, 6)
}

func TestFeatureKeyShape(t *testing.T) {
	f := Features{Priority: PriorityP2, Labels: []string{"auth", "db"}, TitleTokens: []string{"login", "timeout"}}
	assert.Equal(t, "P2:auth,db:login,timeout", f.Key())
}

func TestFeatureKeyWildcard(t *testing.T) {
	f := ExtractFeatures(Ticket{Title: "the", Description: "x"})
	require.True(t, f.Empty())
	assert.Equal(t, WildcardKey, f.Key())
	assert.Equal(t, []string{WildcardKey}, f.Keys())
}

func TestFeatureKeysHierarchy(t *testing.T) {
	f := Features{Priority: PriorityP1, Labels: []string{"auth"}, TitleTokens: []string{"login"}}
	assert.Equal(t, []string{"P1:auth:login", "P1:auth:", "P1::"}, f.Keys())
}

func TestFeatureKeysCollapseDuplicates(t *testing.T) {
	// No title tokens: the full key already equals priority+labels.
	f := Features{Priority: PriorityP1, Labels: []string{"auth"}}
	assert.Equal(t, []string{"P1:auth:", "P1::"}, f.Keys())

	// Priority only: the full key is already the priority bucket.
	f = Features{Priority: PriorityP4}
	assert.Equal(t, []string{"P4::"}, f.Keys())

	// No labels: both fallbacks collapse to the priority bucket, once.
	f = Features{Priority: PriorityP1, TitleTokens: []string{"fails", "login"}}
	assert.Equal(t, []string{"P1::fails,login", "P1::"}, f.Keys())
}

func TestFeatureKeysNoWildcardWhenAnySignal(t *testing.T) {
	f := Features{TitleTokens: []string{"login"}}
	for _, k := range f.Keys() {
		assert.NotEqual(t, WildcardKey, k)
	}
}
