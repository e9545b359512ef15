package sonarr

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
)

func TestTagIDByLabel(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("tag lookup must never write, got %s", r.Method)
		}
		json.NewEncoder(w).Encode([]Tag{
			{ID: 1, Label: "Search"},
			{ID: 2, Label: " done "},
		})
	}))

	ctx := context.Background()

	id, found, err := client.TagIDByLabel(ctx, "search")
	if err != nil || !found || id != 1 {
		t.Errorf("case-insensitive lookup: got id=%d found=%v err=%v", id, found, err)
	}

	id, found, err = client.TagIDByLabel(ctx, "DONE")
	if err != nil || !found || id != 2 {
		t.Errorf("whitespace-trimmed lookup: got id=%d found=%v err=%v", id, found, err)
	}

	_, found, err = client.TagIDByLabel(ctx, "absent")
	if err != nil || found {
		t.Errorf("absent tag: got found=%v err=%v", found, err)
	}

	_, found, err = client.TagIDByLabel(ctx, "  ")
	if err != nil || found {
		t.Errorf("blank label: got found=%v err=%v", found, err)
	}
}

func TestSeriesIDsWithTag(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Series{
			{ID: 1, Tags: []int64{5, 7}},
			{ID: 2, Tags: []int64{7}},
			{ID: 3, Tags: nil},
		})
	}))

	ids, err := client.SeriesIDsWithTag(context.Background(), 7)
	if err != nil {
		t.Fatalf("SeriesIDsWithTag failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 series, got %d", len(ids))
	}
	for _, want := range []int64{1, 2} {
		if _, ok := ids[want]; !ok {
			t.Errorf("series %d missing from tagged set", want)
		}
	}
}

func TestEnsureTagCreatesWhenAbsent(t *testing.T) {
	var created bool
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode([]Tag{{ID: 1, Label: "other"}})
		case http.MethodPost:
			created = true
			json.NewEncoder(w).Encode(Tag{ID: 9, Label: "seekarr-missing"})
		}
	}))

	id, err := client.EnsureTag(context.Background(), "seekarr-missing")
	if err != nil {
		t.Fatalf("EnsureTag failed: %v", err)
	}
	if !created {
		t.Error("expected tag creation POST")
	}
	if id != 9 {
		t.Errorf("expected tag id 9, got %d", id)
	}
}

func TestAddSeriesTagIdempotent(t *testing.T) {
	var putCount int
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"id":4,"title":"Example","tags":[7],"path":"/tv/example"}`))
		case http.MethodPut:
			putCount++
			w.Write([]byte(`{}`))
		}
	}))

	if err := client.AddSeriesTag(context.Background(), 4, 7); err != nil {
		t.Fatalf("AddSeriesTag failed: %v", err)
	}
	if putCount != 0 {
		t.Errorf("tag already present, expected no PUT, got %d", putCount)
	}
}

func TestAddSeriesTagPreservesUnknownFields(t *testing.T) {
	var putBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"id":4,"title":"Example","tags":[],"qualityProfileId":3,"path":"/tv/example"}`))
		case http.MethodPut:
			json.NewDecoder(r.Body).Decode(&putBody)
			w.Write([]byte(`{}`))
		}
	}))

	if err := client.AddSeriesTag(context.Background(), 4, 7); err != nil {
		t.Fatalf("AddSeriesTag failed: %v", err)
	}
	if putBody == nil {
		t.Fatal("expected PUT with body")
	}
	if putBody["path"] != "/tv/example" {
		t.Errorf("unmodeled field dropped in round trip: %v", putBody)
	}
	tags, _ := putBody["tags"].([]any)
	if len(tags) != 1 {
		t.Errorf("expected tag appended, got %v", putBody["tags"])
	}
}
