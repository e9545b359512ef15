package sonarr

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
)

const (
	endpointMissing = "wanted/missing"
	endpointCutoff  = "wanted/cutoff"

	// Full collection walks large pages; random sampling uses the page
	// size the uniform page pick is computed against.
	collectPageSize = 1000
	samplePageSize  = 100
)

// WantedOptions filter a wanted/missing or wanted/cutoff query.
type WantedOptions struct {
	MonitoredOnly bool
	SeriesID      int64 // 0 means all series
}

// MissingEpisodes fetches all missing episodes, walking every page.
// Pagination degrades to partial results: whatever was accumulated before a
// page's retries were exhausted is returned, never an error.
func (c *Client) MissingEpisodes(ctx context.Context, opts WantedOptions) []Episode {
	episodes := c.collectWanted(ctx, endpointMissing, opts, false)

	c.logger.Info().
		Int("count", len(episodes)).
		Msg("fetched missing episodes across all pages")

	return c.applyMonitoredFilter(episodes, opts.MonitoredOnly)
}

// CutoffUnmetEpisodes fetches all episodes below the quality cutoff, walking
// every page with the same partial-result policy as MissingEpisodes.
func (c *Client) CutoffUnmetEpisodes(ctx context.Context, opts WantedOptions) []Episode {
	episodes := c.collectWanted(ctx, endpointCutoff, opts, true)

	c.logger.Info().
		Int("count", len(episodes)).
		Msg("fetched cutoff unmet episodes across all pages")

	return c.applyMonitoredFilter(episodes, opts.MonitoredOnly)
}

// CutoffUnmetForSeries fetches all cutoff unmet episodes of a single series.
func (c *Client) CutoffUnmetForSeries(ctx context.Context, seriesID int64, monitoredOnly bool) []Episode {
	opts := WantedOptions{MonitoredOnly: monitoredOnly, SeriesID: seriesID}
	episodes := c.collectWanted(ctx, endpointCutoff, opts, true)

	// The seriesId query parameter is not trusted blindly.
	verified := episodes[:0]
	for _, ep := range episodes {
		if ep.SeriesID == seriesID {
			verified = append(verified, ep)
		}
	}

	return c.applyMonitoredFilter(verified, monitoredOnly)
}

// MissingEpisodesSample returns up to count missing episodes drawn from one
// uniformly random page of the result set.
func (c *Client) MissingEpisodesSample(ctx context.Context, opts WantedOptions, count int) []Episode {
	return c.sampleWanted(ctx, endpointMissing, opts, count)
}

// CutoffUnmetSample returns up to count cutoff unmet episodes drawn from one
// uniformly random page of the result set.
func (c *Client) CutoffUnmetSample(ctx context.Context, opts WantedOptions, count int) []Episode {
	return c.sampleWanted(ctx, endpointCutoff, opts, count)
}

// collectWanted accumulates records page by page. A page that parses but is
// empty ends the walk; a short page is accumulated and ends the walk; a page
// whose retries are exhausted ends the walk with what was gathered so far.
func (c *Client) collectWanted(ctx context.Context, endpoint string, opts WantedOptions, sorted bool) []Episode {
	var all []Episode

	for page := 1; ; page++ {
		result, err := c.fetchWantedPage(ctx, endpoint, page, collectPageSize, opts, sorted)
		if err != nil {
			c.logger.Error().Err(err).
				Str("endpoint", endpoint).
				Int("page", page).
				Int("accumulated", len(all)).
				Msg("giving up on page, returning partial results")
			return all
		}

		if len(result.Records) == 0 {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Int("page", page).
				Msg("no more records, stopping pagination")
			return all
		}

		all = append(all, result.Records...)

		if len(result.Records) < collectPageSize {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Int("page", page).
				Int("records", len(result.Records)).
				Msg("short page, treating as last page")
			return all
		}
	}
}

// sampleWanted probes the total record count, picks a uniformly random page
// and samples up to count records from it. Uniformity is across pages and
// then within the chosen page, not across the whole record set.
func (c *Client) sampleWanted(ctx context.Context, endpoint string, opts WantedOptions, count int) []Episode {
	probe, err := c.fetchWantedPage(ctx, endpoint, 1, 1, opts, false)
	if err != nil {
		c.logger.Error().Err(err).
			Str("endpoint", endpoint).
			Msg("failed to probe total record count")
		return nil
	}

	if probe.TotalRecords == 0 {
		c.logger.Info().Str("endpoint", endpoint).Msg("no wanted records found")
		return nil
	}

	totalPages := (probe.TotalRecords + samplePageSize - 1) / samplePageSize
	randomPage := rand.IntN(totalPages) + 1

	c.logger.Info().
		Str("endpoint", endpoint).
		Int("totalRecords", probe.TotalRecords).
		Int("totalPages", totalPages).
		Int("page", randomPage).
		Msg("selected random page")

	result, err := c.fetchWantedPage(ctx, endpoint, randomPage, samplePageSize, opts, false)
	if err != nil {
		c.logger.Error().Err(err).
			Str("endpoint", endpoint).
			Int("page", randomPage).
			Msg("failed to fetch random page")
		return nil
	}

	records := c.applyMonitoredFilter(result.Records, opts.MonitoredOnly)
	if len(records) <= count {
		return records
	}

	sampled := make([]Episode, 0, count)
	for _, idx := range rand.Perm(len(records))[:count] {
		sampled = append(sampled, records[idx])
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("sampled", len(sampled)).
		Int("page", randomPage).
		Msg("randomly sampled records from page")

	return sampled
}

// fetchWantedPage requests a single page with bounded retry. Transport
// errors, non-2xx responses, empty bodies and malformed JSON all count as
// retryable failures.
func (c *Client) fetchWantedPage(ctx context.Context, endpoint string, page, pageSize int, opts WantedOptions, sorted bool) (*wantedPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("includeSeries", "true")
	params.Set("monitored", strconv.FormatBool(opts.MonitoredOnly))
	if opts.SeriesID > 0 {
		params.Set("seriesId", strconv.FormatInt(opts.SeriesID, 10))
	}
	if sorted {
		params.Set("sortKey", "airDateUtc")
		params.Set("sortDir", "asc")
	}

	path := endpoint + "?" + params.Encode()

	var lastErr error
	for attempt := 1; attempt <= retriesPerPage+1; attempt++ {
		c.logger.Debug().
			Str("endpoint", endpoint).
			Int("page", page).
			Int("attempt", attempt).
			Int("maxAttempts", retriesPerPage+1).
			Msg("requesting wanted page")

		var result wantedPage
		err := c.get(ctx, path, &result)
		if err == nil {
			return &result, nil
		}
		lastErr = err

		c.logger.Warn().Err(err).
			Str("endpoint", endpoint).
			Int("page", page).
			Int("attempt", attempt).
			Msg("wanted page request failed")

		if attempt <= retriesPerPage {
			if !sleep(ctx, c.pageRetryDelay) {
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("page %d of %s failed after %d attempts: %w", page, endpoint, retriesPerPage+1, lastErr)
}

// applyMonitoredFilter re-checks monitoring locally: the remote monitored
// query parameter is not trusted to honor the series flag transitively, so
// both the episode and its series must be monitored.
func (c *Client) applyMonitoredFilter(episodes []Episode, monitoredOnly bool) []Episode {
	if !monitoredOnly {
		return episodes
	}

	filtered := make([]Episode, 0, len(episodes))
	for _, ep := range episodes {
		if ep.Monitored && ep.Series != nil && ep.Series.Monitored {
			filtered = append(filtered, ep)
		}
	}

	if len(filtered) != len(episodes) {
		c.logger.Debug().
			Int("before", len(episodes)).
			Int("after", len(filtered)).
			Msg("filtered unmonitored episodes")
	}

	return filtered
}
