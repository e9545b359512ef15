package history

// Category classifies why an item was hunted.
type Category string

const (
	CategoryMissing Category = "missing"
	CategoryUpgrade Category = "upgrade"
)

// Entry represents one processed-media history record.
type Entry struct {
	ID        int64    `json:"id"`
	App       string   `json:"app"`
	Instance  string   `json:"instance"`
	Category  Category `json:"category"`
	MediaName string   `json:"mediaName"`
	ItemID    string   `json:"itemId"`
	CreatedAt string   `json:"createdAt"`
}

// ListOptions contains options for listing history.
type ListOptions struct {
	App      string
	Category string
	Page     int
	PageSize int
}

// ListResponse contains paginated history results.
type ListResponse struct {
	Items      []*Entry `json:"items"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalCount int64    `json:"totalCount"`
	TotalPages int      `json:"totalPages"`
}
