package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Platform names an external search platform. The string value is what gets
// stored in the hotspot source column.
type Platform string

const (
	PlatformOpenRouter Platform = "OpenRouter"
	PlatformGitHub     Platform = "GitHub"
	PlatformTwitter    Platform = "Twitter"
)

// SourceSelection is the set of platforms a keyword is checked against.
type SourceSelection int

const (
	SelectOpenRouter SourceSelection = iota + 1
	SelectGitHub
	SelectTwitter
	SelectAll
)

var selectionNames = map[SourceSelection]string{
	SelectOpenRouter: "OpenRouter",
	SelectGitHub:     "GitHub",
	SelectTwitter:    "Twitter",
	SelectAll:        "Both",
}

var selectionPlatforms = map[SourceSelection][]Platform{
	SelectOpenRouter: {PlatformOpenRouter},
	SelectGitHub:     {PlatformGitHub},
	SelectTwitter:    {PlatformTwitter},
	SelectAll:        {PlatformOpenRouter, PlatformGitHub, PlatformTwitter},
}

func ParseSourceSelection(s string) (SourceSelection, error) {
	for sel, name := range selectionNames {
		if name == s {
			return sel, nil
		}
	}
	return 0, fmt.Errorf("invalid source %q (want OpenRouter, GitHub, Twitter or Both)", s)
}

func (s SourceSelection) String() string {
	if name, ok := selectionNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SourceSelection(%d)", int(s))
}

// Platforms returns the adapters to query, in query order.
func (s SourceSelection) Platforms() []Platform {
	return append([]Platform(nil), selectionPlatforms[s]...)
}

func (s SourceSelection) Valid() bool {
	_, ok := selectionNames[s]
	return ok
}

func (s SourceSelection) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SourceSelection) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	sel, err := ParseSourceSelection(raw)
	if err != nil {
		return err
	}
	*s = sel
	return nil
}

type Keyword struct {
	ID        string          `json:"id"`
	Keyword   string          `json:"keyword"`
	Source    SourceSelection `json:"source"`
	IsActive  bool            `json:"isActive"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Hotspot struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	Source          string    `json:"source"`
	SourceURL       *string   `json:"sourceUrl"`
	RelevanceScore  float64   `json:"relevanceScore"`
	PublishedAt     time.Time `json:"publishedAt"`
	Views           int64     `json:"views"`
	Likes           int64     `json:"likes"`
	MatchedKeywords []string  `json:"matchedKeywords"`
	CreatedAt       time.Time `json:"createdAt"`
	Keywords        []Keyword `json:"keywords"`
}

type Notification struct {
	ID        string    `json:"id"`
	HotspotID string    `json:"hotspotId"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
	Hotspot   *Hotspot  `json:"hotspot,omitempty"`
}

type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
)

type CheckHistory struct {
	ID              string    `json:"id"`
	Status          RunStatus `json:"status"`
	KeywordsChecked int       `json:"keywordsChecked"`
	HotspotsFound   int       `json:"hotspotsFound"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Candidate is an adapter result before validation and persistence.
type Candidate struct {
	Title          string
	Content        string
	Source         Platform
	SourceURL      string
	RelevanceScore float64
	PublishedAt    time.Time
	Views          int64
	Likes          int64
}

type Statistics struct {
	TotalHotspots       int            `json:"totalHotspots"`
	ActiveKeywords      int            `json:"activeKeywords"`
	UnreadNotifications int            `json:"unreadNotifications"`
	RecentHotspots      int            `json:"recentHotspots"`
	BySource            map[string]int `json:"bySource"`
}
