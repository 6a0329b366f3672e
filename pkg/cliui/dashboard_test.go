package cliui_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamflow/pkg/cliui"
	"github.com/papercomputeco/streamflow/pkg/state"
)

func ptr[T any](v T) *T { return &v }

var _ = Describe("Dashboard", func() {
	var (
		now time.Time
		doc state.Document
	)

	BeforeEach(func() {
		now = time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
		doc = state.Default()
	})

	Describe("RecommendationsTitle", func() {
		It("defaults without an active genre", func() {
			Expect(cliui.RecommendationsTitle(doc)).To(Equal("Recommended For You"))
		})

		It("capitalises the active genre", func() {
			doc.ActiveGenre = ptr(state.GenreSciFi)
			Expect(cliui.RecommendationsTitle(doc)).To(Equal("Sci-fi Picks"))
		})
	})

	Describe("TrendingTitle", func() {
		It("defaults without a category", func() {
			Expect(cliui.TrendingTitle(doc)).To(Equal("Trending Now"))
		})

		It("uses the trending category", func() {
			doc.TrendingCategory = ptr("Top Thrillers")
			Expect(cliui.TrendingTitle(doc)).To(Equal("Top Thrillers"))
		})
	})

	Describe("RenderDashboard", func() {
		It("renders a placeholder for an empty document", func() {
			Expect(cliui.RenderDashboard(doc, nil, now)).To(ContainSubstring("Nothing on the dashboard yet."))
		})

		It("renders every populated section", func() {
			doc.FeaturedContent = &state.Content{
				ID: "c1", Title: "Stellar Drift", Genre: state.GenreSciFi, Type: state.ContentMovie,
				Year: 2024, Rating: 8.4, Duration: "2h 10m", Description: "A crew adrift.",
				MatchPercentage: ptr(97.0),
			}
			doc.Recommendations = []state.Content{{ID: "c2", Title: "Orbit", Genre: state.GenreSciFi, Type: state.ContentMovie, Rating: 7.1}}
			doc.RecommendationReason = ptr("Because you watched Stellar Drift")
			doc.ActiveGenre = ptr(state.GenreSciFi)
			doc.Trending = []state.Content{{ID: "c3", Title: "Laugh Track", Genre: state.GenreComedy, Type: state.ContentSeries, Rating: 6.5}}
			doc.ContinueWatching = []state.WatchProgress{{
				Content:     state.Content{ID: "c4", Title: "Night Shift", Genre: state.GenreDrama, Type: state.ContentSeries},
				Progress:    40,
				LastWatched: now.Add(-3 * time.Hour).Format(time.RFC3339),
				Episode:     "S1:E3",
			}}
			doc.SearchQuery = ptr("space")
			doc.SearchResults = []state.Content{{ID: "c5", Title: "Void", Genre: state.GenreSciFi, Type: state.ContentMovie}}

			visible := []state.Notification{{ID: "n1", Type: state.NotificationSuccess, Message: "Added to watchlist"}}
			out := cliui.RenderDashboard(doc, visible, now)

			Expect(out).To(ContainSubstring("Stellar Drift"))
			Expect(out).To(ContainSubstring("97% Match"))
			Expect(out).To(ContainSubstring(`Found 1 results for "space"`))
			Expect(out).To(ContainSubstring("Continue Watching"))
			Expect(out).To(ContainSubstring("S1:E3"))
			Expect(out).To(ContainSubstring("3h ago"))
			Expect(out).To(ContainSubstring("Sci-fi Picks"))
			Expect(out).To(ContainSubstring("Because you watched Stellar Drift"))
			Expect(out).To(ContainSubstring("Trending Now"))
			Expect(out).To(ContainSubstring("Popular with viewers this week"))
			Expect(out).To(ContainSubstring("Added to watchlist"))
			Expect(out).To(ContainSubstring("[n1]"))
		})

		It("reports an empty search", func() {
			doc.SearchQuery = ptr("nothing")
			Expect(cliui.RenderDashboard(doc, nil, now)).To(ContainSubstring(`No results for "nothing"`))
		})

		It("shows a loading row while recommendations are pending", func() {
			doc.LoadingStates.Recommendations = true
			out := cliui.RenderDashboard(doc, nil, now)
			Expect(out).To(ContainSubstring("Recommended For You"))
			Expect(out).To(ContainSubstring("Loading..."))
		})

		It("renders only the visible notifications", func() {
			doc.Notifications = []state.Notification{{ID: "gone", Type: state.NotificationInfo, Message: "expired"}}
			Expect(cliui.RenderDashboard(doc, nil, now)).NotTo(ContainSubstring("expired"))
		})
	})

	Describe("TimeAgo", func() {
		It("formats relative times", func() {
			Expect(cliui.TimeAgo(now.Add(-10*time.Minute).Format(time.RFC3339), now)).To(Equal("Just now"))
			Expect(cliui.TimeAgo(now.Add(-5*time.Hour).Format(time.RFC3339), now)).To(Equal("5h ago"))
			Expect(cliui.TimeAgo(now.Add(-30*time.Hour).Format(time.RFC3339), now)).To(Equal("Yesterday"))
			Expect(cliui.TimeAgo(now.Add(-72*time.Hour).Format(time.RFC3339), now)).To(Equal("3 days ago"))
		})

		It("returns unparseable input unchanged", func() {
			Expect(cliui.TimeAgo("last week", now)).To(Equal("last week"))
		})
	})
})
