package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/college-forum/internal/model"
)

func TestWordCount(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"", 0},
		{"one", 1},
		{"  two\twords\n", 2},
		{"<p>hello</p><p>world</p>", 2},
		{"<b>bold</b>text", 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WordCount(tt.content), "WordCount(%q)", tt.content)
	}
}

func TestReadingTime(t *testing.T) {
	assert.Equal(t, 1, ReadingTime(""))
	assert.Equal(t, 1, ReadingTime(words(200)))
	assert.Equal(t, 2, ReadingTime(words(201)))
	assert.Equal(t, 5, ReadingTime(words(1000)))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short text", Excerpt("<p>short</p>  text", 50))

	long := strings.Repeat("word ", 40)
	got := Excerpt(long, 23)
	assert.Equal(t, "word word word word...", got, "cut moves back to a word boundary")

	unbroken := strings.Repeat("x", 30)
	assert.Equal(t, strings.Repeat("x", 10)+"...", Excerpt(unbroken, 10))
}

func TestCountTags(t *testing.T) {
	articles := []model.Article{
		{Tags: []string{"Event", "Question"}},
		{Tags: []string{"Assignment", "Event"}},
		{},
	}
	assert.Equal(t, []TagCount{
		{Tag: "Event", Count: 2},
		{Tag: "Assignment", Count: 1},
		{Tag: "Question", Count: 1},
	}, CountTags(articles))
	assert.Empty(t, CountTags(nil))
}

func TestFilterArticles(t *testing.T) {
	articles := []model.Article{
		{ID: "1", Title: "Midterm prep", Tags: []string{"Study Group"}, AuthorName: "Alice"},
		{ID: "2", Title: "Career fair", Tags: []string{"Event"}, Content: "bring a resume"},
		{ID: "3", Title: "Lab 4", Tags: []string{"Assignment"}, AuthorName: "Bob"},
	}

	ids := func(as []model.Article) []string {
		var out []string
		for _, a := range as {
			out = append(out, a.ID)
		}
		return out
	}

	assert.Equal(t, []string{"1", "2", "3"}, ids(FilterArticles(articles, "", "")))
	assert.Equal(t, []string{"2"}, ids(FilterArticles(articles, "Event", "")))
	assert.Equal(t, []string{"2"}, ids(FilterArticles(articles, "", "RESUME")))
	assert.Equal(t, []string{"3"}, ids(FilterArticles(articles, "", "bob")))
	assert.Empty(t, FilterArticles(articles, "Event", "bob"))
}
