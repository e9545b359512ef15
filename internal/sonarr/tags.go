package sonarr

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Tags fetches all tags defined in Sonarr.
func (c *Client) Tags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	if err := c.get(ctx, "tag", &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// TagIDByLabel resolves a label to its tag id. The match is case-insensitive
// and ignores surrounding whitespace. It never creates tags, so an absent
// label is safe to use for gating: the second return value reports whether
// the tag exists.
func (c *Client) TagIDByLabel(ctx context.Context, label string) (int64, bool, error) {
	want := strings.ToLower(strings.TrimSpace(label))
	if want == "" {
		return 0, false, nil
	}

	tags, err := c.Tags(ctx)
	if err != nil {
		return 0, false, err
	}

	for _, tag := range tags {
		if strings.ToLower(strings.TrimSpace(tag.Label)) == want {
			return tag.ID, true, nil
		}
	}

	return 0, false, nil
}

// SeriesIDsWithTag returns the set of series ids carrying the given tag.
func (c *Client) SeriesIDsWithTag(ctx context.Context, tagID int64) (map[int64]struct{}, error) {
	series, err := c.Series(ctx)
	if err != nil {
		return nil, err
	}

	ids := make(map[int64]struct{})
	for _, s := range series {
		for _, t := range s.Tags {
			if t == tagID {
				ids[s.ID] = struct{}{}
				break
			}
		}
	}

	return ids, nil
}

// EnsureTag returns the id of an existing tag with the given label, creating
// the tag when it does not exist. Only the general tagging path creates
// tags; gating lookups go through TagIDByLabel.
func (c *Client) EnsureTag(ctx context.Context, label string) (int64, error) {
	id, found, err := c.TagIDByLabel(ctx, label)
	if err != nil {
		return 0, err
	}
	if found {
		c.logger.Debug().
			Str("label", label).
			Int64("tagId", id).
			Msg("found existing tag")
		return id, nil
	}

	var created Tag
	if err := c.doJSON(ctx, http.MethodPost, "tag", Tag{Label: label}, &created); err != nil {
		return 0, fmt.Errorf("failed to create tag %q: %w", label, err)
	}

	c.logger.Info().
		Str("label", label).
		Int64("tagId", created.ID).
		Msg("created new tag")

	return created.ID, nil
}

// AddSeriesTag adds a tag to a series. The operation is idempotent: a series
// already carrying the tag is left untouched. The series document is fetched
// and written back as an opaque map so fields this client does not model
// survive the round trip.
func (c *Client) AddSeriesTag(ctx context.Context, seriesID, tagID int64) error {
	var doc map[string]any
	if err := c.get(ctx, fmt.Sprintf("series/%d", seriesID), &doc); err != nil {
		return fmt.Errorf("failed to fetch series %d: %w", seriesID, err)
	}

	var tags []any
	if raw, ok := doc["tags"].([]any); ok {
		tags = raw
	}
	for _, t := range tags {
		if id, ok := t.(float64); ok && int64(id) == tagID {
			c.logger.Debug().
				Int64("seriesId", seriesID).
				Int64("tagId", tagID).
				Msg("tag already present on series")
			return nil
		}
	}

	doc["tags"] = append(tags, tagID)

	if err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("series/%d", seriesID), doc, nil); err != nil {
		return fmt.Errorf("failed to update series %d with tag %d: %w", seriesID, tagID, err)
	}

	c.logger.Debug().
		Int64("seriesId", seriesID).
		Int64("tagId", tagID).
		Msg("added tag to series")

	return nil
}

// TagSeries ensures the label exists and applies it to the series.
func (c *Client) TagSeries(ctx context.Context, seriesID int64, label string) error {
	tagID, err := c.EnsureTag(ctx, label)
	if err != nil {
		return err
	}
	return c.AddSeriesTag(ctx, seriesID, tagID)
}
