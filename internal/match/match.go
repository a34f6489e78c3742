// Package match holds the text matching rules behind video search and
// "similar videos" recommendations.
//
// The rules are expressed twice: as in-memory predicates (MatchesAll,
// MatchesAny) and as the token and tag lists the stores compile into
// their own query language. Both forms use case-insensitive, literal
// substring matching.
package match

import (
	"strings"
	"unicode"
)

// tagStrip lists the characters removed from a tag before it is used as a
// similarity pattern.
const tagStrip = "{}()[]'"

// Fields is the searchable text of one video.
type Fields struct {
	Title string
	Desc  string
	Tags  []string
}

// Tokenize splits a search query on whitespace. A blank query yields no
// tokens; callers must treat that as "no search".
func Tokenize(query string) []string {
	return strings.FieldsFunc(query, unicode.IsSpace)
}

// SanitizeTag strips bracket, brace, parenthesis and quote characters.
func SanitizeTag(tag string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(tagStrip, r) {
			return -1
		}
		return r
	}, tag)
}

// SanitizeTags sanitizes every tag and drops the ones left empty, since an
// empty pattern would match every video.
func SanitizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if s := strings.TrimSpace(SanitizeTag(t)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func allIn(text string, tokens []string) bool {
	for _, tok := range tokens {
		if !contains(text, tok) {
			return false
		}
	}
	return true
}

// allInTags requires every token to be found in at least one tag.
func allInTags(tags []string, tokens []string) bool {
	for _, tok := range tokens {
		found := false
		for _, tag := range tags {
			if contains(tag, tok) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// MatchesAll is the search predicate. Every token must appear in the same
// field: all in the title, or all in the description, or all among the
// tags. Tokens split across fields do not match. No tokens never matches.
func MatchesAll(f Fields, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	return allIn(f.Title, tokens) || allIn(f.Desc, tokens) || allInTags(f.Tags, tokens)
}

// MatchesAny is the similarity predicate. The video matches when any of
// the sanitized tags appears in its title, its description or one of its
// tags.
func MatchesAny(f Fields, tags []string) bool {
	for _, tag := range tags {
		if contains(f.Title, tag) || contains(f.Desc, tag) {
			return true
		}
		for _, own := range f.Tags {
			if contains(own, tag) {
				return true
			}
		}
	}
	return false
}

// LikePattern turns s into a SQL LIKE substring pattern using '\' as the
// escape character.
func LikePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// ExcludeID drops the item whose id equals id. Similar lookups return the
// reference video itself; callers remove it with this.
func ExcludeID[T any](items []T, id string, idOf func(T) string) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if idOf(it) != id {
			out = append(out, it)
		}
	}
	return out
}
