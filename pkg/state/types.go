package state

import (
	"fmt"
)

// Genre is a catalogue genre.
type Genre string

const (
	GenreAction      Genre = "action"
	GenreComedy      Genre = "comedy"
	GenreDrama       Genre = "drama"
	GenreHorror      Genre = "horror"
	GenreSciFi       Genre = "sci-fi"
	GenreRomance     Genre = "romance"
	GenreThriller    Genre = "thriller"
	GenreDocumentary Genre = "documentary"
	GenreAnimation   Genre = "animation"
	GenreFantasy     Genre = "fantasy"
)

// Genres lists every genre in catalogue order.
var Genres = []Genre{
	GenreAction, GenreComedy, GenreDrama, GenreHorror, GenreSciFi,
	GenreRomance, GenreThriller, GenreDocumentary, GenreAnimation, GenreFantasy,
}

// Valid reports whether g is a known genre.
func (g Genre) Valid() bool {
	for _, known := range Genres {
		if g == known {
			return true
		}
	}
	return false
}

// ContentType distinguishes movies, series and documentaries.
type ContentType string

const (
	ContentMovie       ContentType = "movie"
	ContentSeries      ContentType = "series"
	ContentDocumentary ContentType = "documentary"
)

func (t ContentType) Valid() bool {
	switch t {
	case ContentMovie, ContentSeries, ContentDocumentary:
		return true
	}
	return false
}

// MaturityRating is a user's content rating ceiling.
type MaturityRating string

func (r MaturityRating) Valid() bool {
	switch r {
	case "G", "PG", "PG-13", "R", "NC-17":
		return true
	}
	return false
}

// NotificationType is the severity of a notification.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationInfo, NotificationSuccess, NotificationWarning, NotificationError:
		return true
	}
	return false
}

// Content is one catalogue title.
type Content struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	Genre           Genre       `json:"genre"`
	Type            ContentType `json:"type"`
	Year            int         `json:"year"`
	Rating          float64     `json:"rating"`
	Duration        string      `json:"duration"`
	PosterURL       string      `json:"posterUrl"`
	BackdropURL     string      `json:"backdropUrl"`
	Cast            []string    `json:"cast"`
	Director        string      `json:"director,omitempty"`
	TrailerURL      string      `json:"trailerUrl,omitempty"`
	MatchPercentage *float64    `json:"matchPercentage,omitempty"`
}

func (c *Content) validate() error {
	if !c.Genre.Valid() {
		return fmt.Errorf("content %q: unknown genre %q", c.ID, c.Genre)
	}
	if !c.Type.Valid() {
		return fmt.Errorf("content %q: unknown content type %q", c.ID, c.Type)
	}
	return nil
}

// WatchProgress is a partially watched title.
type WatchProgress struct {
	Content     Content `json:"content"`
	Progress    float64 `json:"progress"`
	LastWatched string  `json:"lastWatched"`
	Episode     string  `json:"episode,omitempty"`
}

// UserPreferences are the viewer's settings.
type UserPreferences struct {
	FavoriteGenres        []Genre        `json:"favoriteGenres"`
	PreferredContentTypes []ContentType  `json:"preferredContentTypes"`
	MaturityRating        MaturityRating `json:"maturityRating"`
	AutoplayEnabled       bool           `json:"autoplayEnabled"`
	NotificationsEnabled  bool           `json:"notificationsEnabled"`
}

func (p *UserPreferences) validate() error {
	for _, g := range p.FavoriteGenres {
		if !g.Valid() {
			return fmt.Errorf("preferences: unknown genre %q", g)
		}
	}
	for _, t := range p.PreferredContentTypes {
		if !t.Valid() {
			return fmt.Errorf("preferences: unknown content type %q", t)
		}
	}
	if !p.MaturityRating.Valid() {
		return fmt.Errorf("preferences: unknown maturity rating %q", p.MaturityRating)
	}
	return nil
}

// UserProfile is the signed-in viewer.
type UserProfile struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	AvatarURL      string          `json:"avatarUrl"`
	Preferences    UserPreferences `json:"preferences"`
	MemberSince    string          `json:"memberSince"`
	WatchlistCount int             `json:"watchlistCount"`
}

// Notification is an ephemeral message pushed by the assistant.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Timestamp string           `json:"timestamp"`
}

// LoadingStates flags dashboard sections that are still being filled.
type LoadingStates struct {
	Recommendations bool `json:"recommendations"`
	Trending        bool `json:"trending"`
	Search          bool `json:"search"`
	Featured        bool `json:"featured"`
}
