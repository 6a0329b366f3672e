// Package state defines the shared dashboard document that the assistant
// edits through node updates and the client renders.
//
// Every field of a Document is always present. Lists encode as [] rather
// than null, and optional values encode as null, so a serialised Document
// has a fixed set of keys no matter how it was built.
package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Document field names as they appear on the wire.
const (
	FieldFeaturedContent      = "featuredContent"
	FieldRecommendations      = "recommendations"
	FieldRecommendationReason = "recommendationReason"
	FieldTrending             = "trending"
	FieldTrendingCategory     = "trendingCategory"
	FieldContinueWatching     = "continueWatching"
	FieldSearchResults        = "searchResults"
	FieldSearchQuery          = "searchQuery"
	FieldUserProfile          = "userProfile"
	FieldActiveGenre          = "activeGenre"
	FieldNotifications        = "notifications"
	FieldLoadingStates        = "loadingStates"
)

// Fields lists every Document field in declaration order.
var Fields = []string{
	FieldFeaturedContent,
	FieldRecommendations,
	FieldRecommendationReason,
	FieldTrending,
	FieldTrendingCategory,
	FieldContinueWatching,
	FieldSearchResults,
	FieldSearchQuery,
	FieldUserProfile,
	FieldActiveGenre,
	FieldNotifications,
	FieldLoadingStates,
}

// ErrUnknownField is returned by SetField for a key the Document does not
// have.
var ErrUnknownField = errors.New("unknown document field")

// Document is the shared dashboard state.
type Document struct {
	FeaturedContent      *Content        `json:"featuredContent"`
	Recommendations      []Content       `json:"recommendations"`
	RecommendationReason *string         `json:"recommendationReason"`
	Trending             []Content       `json:"trending"`
	TrendingCategory     *string         `json:"trendingCategory"`
	ContinueWatching     []WatchProgress `json:"continueWatching"`
	SearchResults        []Content       `json:"searchResults"`
	SearchQuery          *string         `json:"searchQuery"`
	UserProfile          *UserProfile    `json:"userProfile"`
	ActiveGenre          *Genre          `json:"activeGenre"`
	Notifications        []Notification  `json:"notifications"`
	LoadingStates        LoadingStates   `json:"loadingStates"`
}

// Default returns the empty dashboard.
func Default() Document {
	return Document{
		Recommendations:  []Content{},
		Trending:         []Content{},
		ContinueWatching: []WatchProgress{},
		SearchResults:    []Content{},
		Notifications:    []Notification{},
	}
}

// MarshalJSON encodes every field, writing nil lists as [].
func (d Document) MarshalJSON() ([]byte, error) {
	type plain Document
	p := plain(d.normalized())
	return json.Marshal(p)
}

// UnmarshalJSON decodes a complete or partial document. Missing keys keep
// their default values and unknown keys are ignored.
func (d *Document) UnmarshalJSON(data []byte) error {
	type plain Document
	p := plain(Default())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	doc := Document(p).normalized()
	if err := doc.Validate(); err != nil {
		return err
	}
	*d = doc
	return nil
}

// Clone returns a deep copy that shares no slices or pointers with d.
func (d Document) Clone() Document {
	c := d.normalized()

	c.FeaturedContent = cloneContentPtr(d.FeaturedContent)
	c.Recommendations = cloneContents(d.Recommendations)
	c.RecommendationReason = clonePtr(d.RecommendationReason)
	c.Trending = cloneContents(d.Trending)
	c.TrendingCategory = clonePtr(d.TrendingCategory)
	c.ContinueWatching = make([]WatchProgress, len(d.ContinueWatching))
	for i, w := range d.ContinueWatching {
		w.Content = cloneContent(w.Content)
		c.ContinueWatching[i] = w
	}
	c.SearchResults = cloneContents(d.SearchResults)
	c.SearchQuery = clonePtr(d.SearchQuery)
	if d.UserProfile != nil {
		p := *d.UserProfile
		p.Preferences.FavoriteGenres = slices.Clone(p.Preferences.FavoriteGenres)
		p.Preferences.PreferredContentTypes = slices.Clone(p.Preferences.PreferredContentTypes)
		c.UserProfile = &p
	}
	c.ActiveGenre = clonePtr(d.ActiveGenre)
	c.Notifications = append([]Notification{}, d.Notifications...)

	return c
}

// Validate checks every enumerated value in the document.
func (d Document) Validate() error {
	if d.FeaturedContent != nil {
		if err := d.FeaturedContent.validate(); err != nil {
			return fmt.Errorf("%s: %w", FieldFeaturedContent, err)
		}
	}
	for field, list := range map[string][]Content{
		FieldRecommendations: d.Recommendations,
		FieldTrending:        d.Trending,
		FieldSearchResults:   d.SearchResults,
	} {
		for i := range list {
			if err := list[i].validate(); err != nil {
				return fmt.Errorf("%s: %w", field, err)
			}
		}
	}
	for i := range d.ContinueWatching {
		if err := d.ContinueWatching[i].Content.validate(); err != nil {
			return fmt.Errorf("%s: %w", FieldContinueWatching, err)
		}
	}
	if d.UserProfile != nil {
		if err := d.UserProfile.Preferences.validate(); err != nil {
			return fmt.Errorf("%s: %w", FieldUserProfile, err)
		}
	}
	if d.ActiveGenre != nil && !d.ActiveGenre.Valid() {
		return fmt.Errorf("%s: unknown genre %q", FieldActiveGenre, *d.ActiveGenre)
	}
	for _, n := range d.Notifications {
		if !n.Type.Valid() {
			return fmt.Errorf("%s: notification %q has unknown type %q", FieldNotifications, n.ID, n.Type)
		}
	}
	return nil
}

// SetField replaces one top-level field with the decoded value of raw. A
// JSON null resets the field to its default. The new value is validated
// before it is stored; on error d is unchanged.
func (d *Document) SetField(key string, raw json.RawMessage) error {
	next := *d
	reset := isNull(raw)
	def := Default()

	var err error
	switch key {
	case FieldFeaturedContent:
		next.FeaturedContent = nil
		if !reset {
			err = json.Unmarshal(raw, &next.FeaturedContent)
		}
	case FieldRecommendations:
		next.Recommendations = def.Recommendations
		if !reset {
			err = json.Unmarshal(raw, &next.Recommendations)
		}
	case FieldRecommendationReason:
		next.RecommendationReason = nil
		if !reset {
			err = json.Unmarshal(raw, &next.RecommendationReason)
		}
	case FieldTrending:
		next.Trending = def.Trending
		if !reset {
			err = json.Unmarshal(raw, &next.Trending)
		}
	case FieldTrendingCategory:
		next.TrendingCategory = nil
		if !reset {
			err = json.Unmarshal(raw, &next.TrendingCategory)
		}
	case FieldContinueWatching:
		next.ContinueWatching = def.ContinueWatching
		if !reset {
			err = json.Unmarshal(raw, &next.ContinueWatching)
		}
	case FieldSearchResults:
		next.SearchResults = def.SearchResults
		if !reset {
			err = json.Unmarshal(raw, &next.SearchResults)
		}
	case FieldSearchQuery:
		next.SearchQuery = nil
		if !reset {
			err = json.Unmarshal(raw, &next.SearchQuery)
		}
	case FieldUserProfile:
		next.UserProfile = nil
		if !reset {
			err = json.Unmarshal(raw, &next.UserProfile)
		}
	case FieldActiveGenre:
		next.ActiveGenre = nil
		if !reset {
			err = json.Unmarshal(raw, &next.ActiveGenre)
		}
	case FieldNotifications:
		next.Notifications = def.Notifications
		if !reset {
			err = json.Unmarshal(raw, &next.Notifications)
		}
	case FieldLoadingStates:
		next.LoadingStates = def.LoadingStates
		if !reset {
			err = json.Unmarshal(raw, &next.LoadingStates)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	if err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}

	next = next.normalized()
	if err := next.Validate(); err != nil {
		return err
	}
	*d = next
	return nil
}

// normalized replaces nil lists with empty ones.
func (d Document) normalized() Document {
	if d.Recommendations == nil {
		d.Recommendations = []Content{}
	}
	if d.Trending == nil {
		d.Trending = []Content{}
	}
	if d.ContinueWatching == nil {
		d.ContinueWatching = []WatchProgress{}
	}
	if d.SearchResults == nil {
		d.SearchResults = []Content{}
	}
	if d.Notifications == nil {
		d.Notifications = []Notification{}
	}
	return d
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// Ptr returns a pointer to v, for filling the optional fields of a Document.
func Ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneContent(c Content) Content {
	c.Cast = slices.Clone(c.Cast)
	c.MatchPercentage = clonePtr(c.MatchPercentage)
	return c
}

func cloneContentPtr(c *Content) *Content {
	if c == nil {
		return nil
	}
	v := cloneContent(*c)
	return &v
}

func cloneContents(list []Content) []Content {
	out := make([]Content, len(list))
	for i, c := range list {
		out[i] = cloneContent(c)
	}
	return out
}
