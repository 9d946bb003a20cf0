package domain

import "time"

// ProcessedRecord is durable proof that an item was delivered. The snapshot
// fields are kept for human inspection only.
type ProcessedRecord struct {
	Link        string
	Title       string
	DisplayDate string
	ImageURL    string
	ProcessedAt time.Time
}

// NewProcessedRecord snapshots item as delivered at processedAt.
func NewProcessedRecord(item Item, processedAt time.Time) ProcessedRecord {
	image, _ := item.ImageURL()
	return ProcessedRecord{
		Link:        item.Link(),
		Title:       item.Title(),
		DisplayDate: item.FormattedDate(),
		ImageURL:    image,
		ProcessedAt: processedAt,
	}
}
