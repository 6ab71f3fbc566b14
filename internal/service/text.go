package service

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/sakif/college-forum/internal/model"
)

// WordsPerMinute is the reading speed behind ReadingTime.
const WordsPerMinute = 200

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// StripTags removes HTML tags left by the rich-text editor.
func StripTags(s string) string {
	return htmlTag.ReplaceAllString(s, " ")
}

// WordCount counts whitespace-separated words, ignoring markup.
func WordCount(content string) int {
	return len(strings.Fields(StripTags(content)))
}

// ReadingTime is the estimated reading time in whole minutes, at least 1.
func ReadingTime(content string) int {
	words := WordCount(content)
	minutes := (words + WordsPerMinute - 1) / WordsPerMinute
	return max(minutes, 1)
}

// Excerpt returns plain text of at most maxLen runes followed by "...".
// The cut moves back to the last space when that space lies in the final
// fifth of the allowed length, so words are not split mid-way.
func Excerpt(content string, maxLen int) string {
	text := strings.Join(strings.Fields(StripTags(content)), " ")
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}

	cut := string([]rune(text)[:maxLen])
	if i := strings.LastIndex(cut, " "); i > 0 && utf8.RuneCountInString(cut[:i]) > maxLen*4/5 {
		cut = cut[:i]
	}
	return cut + "..."
}

// TagCount is one entry of the tag sidebar.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// CountTags counts the articles carrying each tag, most used first and
// alphabetical among equals.
func CountTags(articles []model.Article) []TagCount {
	counts := make(map[string]int)
	for _, a := range articles {
		for _, t := range a.Tags {
			counts[t]++
		}
	}
	out := make([]TagCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, TagCount{Tag: t, Count: n})
	}
	slices.SortFunc(out, func(a, b TagCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Tag, b.Tag)
	})
	return out
}

// FilterArticles keeps articles carrying tag (any tag when empty) whose
// title, content, author name or tags contain search, ignoring case.
func FilterArticles(articles []model.Article, tag, search string) []model.Article {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		if tag != "" && !slices.Contains(a.Tags, tag) {
			continue
		}
		if needle != "" && !matchesSearch(a, needle) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func matchesSearch(a model.Article, needle string) bool {
	fields := append([]string{a.Title, a.Content, a.AuthorName}, a.Tags...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// cleanList trims entries, drops blanks and case-insensitive duplicates,
// keeping the first spelling, and caps the list at limit entries.
func cleanList(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}
