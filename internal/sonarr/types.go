package sonarr

// Series is a top-level library item tracked by Sonarr.
type Series struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Monitored bool    `json:"monitored"`
	Tags      []int64 `json:"tags"`
}

// Episode is a single schedulable unit belonging to one series.
type Episode struct {
	ID            int64   `json:"id"`
	SeriesID      int64   `json:"seriesId"`
	SeasonNumber  int     `json:"seasonNumber"`
	EpisodeNumber int     `json:"episodeNumber"`
	Title         string  `json:"title"`
	AirDateUTC    string  `json:"airDateUtc"`
	Monitored     bool    `json:"monitored"`
	HasFile       bool    `json:"hasFile"`
	Series        *Series `json:"series,omitempty"`
}

// Tag is an operator-assigned label on a series.
type Tag struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// Command is the status record of an asynchronous Sonarr command.
type Command struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Command status values reported by Sonarr.
const (
	CommandCompleted = "completed"
	CommandFailed    = "failed"
	CommandAborted   = "aborted"
)

// QualityProfile is a quality profile configured in Sonarr.
type QualityProfile struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SystemStatus is the Sonarr system status response.
type SystemStatus struct {
	Version string `json:"version"`
}

// wantedPage is one page of a paginated wanted/missing or wanted/cutoff
// response.
type wantedPage struct {
	Page         int       `json:"page"`
	PageSize     int       `json:"pageSize"`
	TotalRecords int       `json:"totalRecords"`
	Records      []Episode `json:"records"`
}

// queuePage is the first page of the download queue, fetched only for its
// totalRecords count.
type queuePage struct {
	TotalRecords int `json:"totalRecords"`
}
