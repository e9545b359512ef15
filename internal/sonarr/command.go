package sonarr

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Consecutive status-fetch failures tolerated by WaitForCommand before the
// wait is declared failed. The command may have been pruned from Sonarr's
// command log, in which case its status can never be observed again.
const maxStatusFetchFailures = 3

type episodeSearchPayload struct {
	Name       string  `json:"name"`
	EpisodeIDs []int64 `json:"episodeIds"`
}

type seasonSearchPayload struct {
	Name         string `json:"name"`
	SeriesID     int64  `json:"seriesId"`
	SeasonNumber int    `json:"seasonNumber"`
}

// SearchEpisodes triggers a search for the given episode ids and returns the
// command id.
func (c *Client) SearchEpisodes(ctx context.Context, episodeIDs []int64) (int64, error) {
	if len(episodeIDs) == 0 {
		return 0, fmt.Errorf("no episode ids provided for search")
	}

	var cmd Command
	payload := episodeSearchPayload{Name: "EpisodeSearch", EpisodeIDs: episodeIDs}
	if err := c.doJSON(ctx, http.MethodPost, "command", payload, &cmd); err != nil {
		return 0, fmt.Errorf("failed to trigger episode search: %w", err)
	}

	c.logger.Info().
		Ints64("episodeIds", episodeIDs).
		Int64("commandId", cmd.ID).
		Msg("triggered episode search")

	return cmd.ID, nil
}

// SearchSeason triggers a search for a whole season (season pack) and
// returns the command id.
func (c *Client) SearchSeason(ctx context.Context, seriesID int64, seasonNumber int) (int64, error) {
	var cmd Command
	payload := seasonSearchPayload{Name: "SeasonSearch", SeriesID: seriesID, SeasonNumber: seasonNumber}
	if err := c.doJSON(ctx, http.MethodPost, "command", payload, &cmd); err != nil {
		return 0, fmt.Errorf("failed to trigger season search: %w", err)
	}

	c.logger.Info().
		Int64("seriesId", seriesID).
		Int("season", seasonNumber).
		Int64("commandId", cmd.ID).
		Msg("triggered season search")

	return cmd.ID, nil
}

// CommandStatus fetches the current status of a command.
func (c *Client) CommandStatus(ctx context.Context, commandID int64) (*Command, error) {
	var cmd Command
	if err := c.get(ctx, fmt.Sprintf("command/%d", commandID), &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// WaitForCommand polls a command until it reaches a terminal state.
//
// "completed" reports success; "failed" and "aborted" report failure
// immediately. Any other status consumes one attempt and sleeps waitDelay
// before the next check. A status fetch error counts as still pending, but
// maxStatusFetchFailures consecutive fetch errors end the wait as a failure.
// Context cancellation ends the wait immediately with failure. A
// non-positive waitDelay or maxAttempts disables waiting entirely:
// fire-and-forget, reported as success with zero status checks.
func (c *Client) WaitForCommand(ctx context.Context, commandID int64, waitDelay time.Duration, maxAttempts int, commandName string) bool {
	if waitDelay <= 0 || maxAttempts <= 0 {
		c.logger.Debug().
			Int64("commandId", commandID).
			Dur("waitDelay", waitDelay).
			Int("maxAttempts", maxAttempts).
			Msg("not waiting for command to complete")
		return true
	}

	c.logger.Debug().
		Str("command", commandName).
		Int64("commandId", commandID).
		Dur("waitDelay", waitDelay).
		Int("maxAttempts", maxAttempts).
		Msg("waiting for command to complete")

	fetchFailures := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			c.logger.Info().
				Str("command", commandName).
				Int64("commandId", commandID).
				Msg("stopping command wait due to stop request")
			return false
		}

		cmd, err := c.CommandStatus(ctx, commandID)
		if err != nil {
			fetchFailures++
			c.logger.Warn().Err(err).
				Str("command", commandName).
				Int64("commandId", commandID).
				Int("attempt", attempt).
				Int("consecutiveFailures", fetchFailures).
				Msg("failed to get command status")
			if fetchFailures >= maxStatusFetchFailures {
				c.logger.Warn().
					Str("command", commandName).
					Int64("commandId", commandID).
					Msg("giving up on command wait, status repeatedly unavailable")
				return false
			}
			if !sleep(ctx, waitDelay) {
				return false
			}
			continue
		}
		fetchFailures = 0

		switch cmd.Status {
		case CommandCompleted:
			c.logger.Debug().
				Str("command", commandName).
				Int64("commandId", commandID).
				Msg("command completed")
			return true
		case CommandFailed, CommandAborted:
			c.logger.Warn().
				Str("command", commandName).
				Int64("commandId", commandID).
				Str("status", cmd.Status).
				Msg("command ended in failure state")
			return false
		}

		c.logger.Debug().
			Str("command", commandName).
			Int64("commandId", commandID).
			Str("status", cmd.Status).
			Int("attempt", attempt).
			Int("maxAttempts", maxAttempts).
			Msg("command still pending")

		if !sleep(ctx, waitDelay) {
			return false
		}
	}

	c.logger.Error().
		Str("command", commandName).
		Int64("commandId", commandID).
		Int("maxAttempts", maxAttempts).
		Msg("timed out waiting for command to complete")

	return false
}
