package openrouter

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"hotspot/internal/model"
	"hotspot/internal/source"
)

const defaultRelevance = 0.8

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

var publishedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseReply turns model output into a candidate. The output is untrusted:
// every field is checked and replaced by its default when missing or out of
// range. The bool result is false when no JSON object could be decoded and
// the synthetic candidate was returned instead.
func ParseReply(text, keyword string, now time.Time) (model.Candidate, bool) {
	fallback := model.Candidate{
		Title:          "Hotspot about " + keyword,
		Content:        source.PlainText(text),
		Source:         model.PlatformOpenRouter,
		RelevanceScore: defaultRelevance,
		PublishedAt:    now.UTC(),
	}
	span := jsonObject.FindString(text)
	if span == "" {
		return fallback, false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		return fallback, false
	}

	c := model.Candidate{
		Title:          "Hotspot about " + keyword,
		Source:         model.PlatformOpenRouter,
		RelevanceScore: defaultRelevance,
		PublishedAt:    now.UTC(),
	}
	if s, ok := fields["title"].(string); ok {
		if t := source.CleanText(s); t != "" {
			c.Title = t
		}
	}
	if s, ok := fields["content"].(string); ok {
		c.Content = source.CleanText(s)
	}
	if s, ok := fields["source_url"].(string); ok {
		c.SourceURL = strings.TrimSpace(s)
	}
	if f, ok := number(fields["relevance_score"]); ok && f >= 0 && f <= 1 {
		c.RelevanceScore = f
	}
	if s, ok := fields["published_date"].(string); ok {
		if t, ok := parsePublished(s); ok {
			c.PublishedAt = t
		}
	}
	c.Views = count(fields["views"])
	c.Likes = count(fields["likes"])
	return c, true
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(x, ",", "")), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func count(v any) int64 {
	f, ok := number(v)
	if !ok || f < 0 || f > math.MaxInt64/2 {
		return 0
	}
	return int64(f)
}

func parsePublished(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
