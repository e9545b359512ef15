package sonarr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"testing"
)

// wantedHandler serves wanted pages out of a fixed episode list, honoring
// page and pageSize query parameters.
func wantedHandler(t *testing.T, episodes []Episode, failPages map[int]bool) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
		if page < 1 || pageSize < 1 {
			t.Errorf("bad pagination params: page=%d pageSize=%d", page, pageSize)
		}

		if failPages[page] {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}

		start := (page - 1) * pageSize
		end := start + pageSize
		if start > len(episodes) {
			start = len(episodes)
		}
		if end > len(episodes) {
			end = len(episodes)
		}

		resp := wantedPage{
			Page:         page,
			PageSize:     pageSize,
			TotalRecords: len(episodes),
			Records:      episodes[start:end],
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func makeEpisodes(n int) []Episode {
	episodes := make([]Episode, n)
	for i := range episodes {
		episodes[i] = Episode{
			ID:            int64(i + 1),
			SeriesID:      int64(i/10 + 1),
			SeasonNumber:  1,
			EpisodeNumber: i + 1,
			Monitored:     true,
			Series:        &Series{ID: int64(i/10 + 1), Monitored: true},
		}
	}
	return episodes
}

func TestMissingEpisodesWalksAllPages(t *testing.T) {
	// 2500 records: two full pages of 1000 plus a short page of 500.
	episodes := makeEpisodes(2500)
	client, _ := newTestClient(t, wantedHandler(t, episodes, nil))

	got := client.MissingEpisodes(context.Background(), WantedOptions{})
	if len(got) != 2500 {
		t.Errorf("expected 2500 episodes, got %d", len(got))
	}
}

func TestMissingEpisodesEmptyResult(t *testing.T) {
	client, _ := newTestClient(t, wantedHandler(t, nil, nil))

	got := client.MissingEpisodes(context.Background(), WantedOptions{})
	if len(got) != 0 {
		t.Errorf("expected no episodes, got %d", len(got))
	}
}

func TestMissingEpisodesPartialOnPageFailure(t *testing.T) {
	// Page 2 always fails; the walk must return page 1's records.
	episodes := makeEpisodes(2500)
	client, _ := newTestClient(t, wantedHandler(t, episodes, map[int]bool{2: true}))

	got := client.MissingEpisodes(context.Background(), WantedOptions{})
	if len(got) != 1000 {
		t.Errorf("expected 1000 episodes from page 1, got %d", len(got))
	}
}

func TestFetchWantedPageRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			http.Error(w, "flaky", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(wantedPage{TotalRecords: 1, Records: makeEpisodes(1)})
	}))

	result, err := client.fetchWantedPage(context.Background(), endpointMissing, 1, 10, WantedOptions{}, false)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if len(result.Records) != 1 {
		t.Errorf("expected 1 record, got %d", len(result.Records))
	}
}

func TestFetchWantedPageExhaustsRetries(t *testing.T) {
	attempts := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))

	if _, err := client.fetchWantedPage(context.Background(), endpointMissing, 1, 10, WantedOptions{}, false); err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if attempts != retriesPerPage+1 {
		t.Errorf("expected %d attempts, got %d", retriesPerPage+1, attempts)
	}
}

func TestApplyMonitoredFilter(t *testing.T) {
	episodes := []Episode{
		{ID: 1, Monitored: true, Series: &Series{Monitored: true}},
		{ID: 2, Monitored: false, Series: &Series{Monitored: true}},
		{ID: 3, Monitored: true, Series: &Series{Monitored: false}},
		{ID: 4, Monitored: true, Series: nil},
	}

	client, _ := newTestClient(t, http.NotFoundHandler())

	got := client.applyMonitoredFilter(episodes, true)
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("expected only episode 1 to survive, got %v", got)
	}

	got = client.applyMonitoredFilter(episodes, false)
	if len(got) != 4 {
		t.Errorf("expected all episodes without filter, got %d", len(got))
	}
}

func TestSampleWantedBoundsAndUniqueness(t *testing.T) {
	episodes := makeEpisodes(250)
	client, _ := newTestClient(t, wantedHandler(t, episodes, nil))

	for i := 0; i < 20; i++ {
		got := client.MissingEpisodesSample(context.Background(), WantedOptions{}, 10)
		if len(got) > 10 {
			t.Fatalf("sample of %d exceeds requested count 10", len(got))
		}
		seen := make(map[int64]bool)
		for _, ep := range got {
			if seen[ep.ID] {
				t.Fatalf("duplicate episode %d in sample", ep.ID)
			}
			seen[ep.ID] = true
		}
	}
}

func TestSampleWantedSmallResultReturnsAll(t *testing.T) {
	episodes := makeEpisodes(3)
	client, _ := newTestClient(t, wantedHandler(t, episodes, nil))

	got := client.MissingEpisodesSample(context.Background(), WantedOptions{}, 10)
	if len(got) != 3 {
		t.Errorf("expected all 3 episodes, got %d", len(got))
	}
}

func TestSampleWantedEmpty(t *testing.T) {
	client, _ := newTestClient(t, wantedHandler(t, nil, nil))

	got := client.MissingEpisodesSample(context.Background(), WantedOptions{}, 10)
	if got != nil {
		t.Errorf("expected nil sample for empty result set, got %v", got)
	}
}

func TestCutoffUnmetForSeriesVerifiesSeriesID(t *testing.T) {
	// The server ignores the seriesId parameter and returns a mix.
	mixed := []Episode{
		{ID: 1, SeriesID: 5, Monitored: true, Series: &Series{ID: 5, Monitored: true}},
		{ID: 2, SeriesID: 6, Monitored: true, Series: &Series{ID: 6, Monitored: true}},
		{ID: 3, SeriesID: 5, Monitored: true, Series: &Series{ID: 5, Monitored: true}},
	}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(wantedPage{TotalRecords: len(mixed), Records: mixed})
	}))

	got := client.CutoffUnmetForSeries(context.Background(), 5, false)
	if len(got) != 2 {
		t.Fatalf("expected 2 episodes for series 5, got %d", len(got))
	}
	for _, ep := range got {
		if ep.SeriesID != 5 {
			t.Errorf("episode %d belongs to series %d", ep.ID, ep.SeriesID)
		}
	}
}

func TestSampleWantedProbeUsesPageSizeOne(t *testing.T) {
	var probePageSize string
	first := true
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if first {
			probePageSize = r.URL.Query().Get("pageSize")
			first = false
		}
		fmt.Fprint(w, `{"totalRecords":0,"records":[]}`)
	}))

	client.MissingEpisodesSample(context.Background(), WantedOptions{}, 5)
	if probePageSize != "1" {
		t.Errorf("expected probe pageSize 1, got %q", probePageSize)
	}
}
