package domain

import (
	"slices"
	"time"

	"WerchterMonitor/internal/dates"
)

// Item is a candidate piece of news fetched from the source. It is built
// fresh on every fetch and never mutated afterwards; the link identifies it.
type Item struct {
	title      string
	dateText   string
	link       string
	imageURL   string
	parsedDate time.Time
	hasDate    bool
}

// NewItem builds an Item and normalizes its date. It always succeeds: an
// unparsable date simply leaves the item without a parsed date.
func NewItem(title, dateText, link, imageURL string) Item {
	parsed, ok := dates.Parse(dateText)
	return Item{
		title:      title,
		dateText:   dateText,
		link:       link,
		imageURL:   imageURL,
		parsedDate: parsed,
		hasDate:    ok,
	}
}

func (i Item) Title() string    { return i.title }
func (i Item) DateText() string { return i.dateText }
func (i Item) Link() string     { return i.link }

// ImageURL returns the image reference and whether the item has one.
func (i Item) ImageURL() (string, bool) {
	return i.imageURL, i.imageURL != ""
}

// ParsedDate returns the normalized publication date, if any.
func (i Item) ParsedDate() (time.Time, bool) {
	return i.parsedDate, i.hasDate
}

// FormattedDate renders the parsed date for humans.
func (i Item) FormattedDate() string {
	return dates.Format(i.parsedDate, i.hasDate)
}

// Equal reports whether both items share the same identity.
func (i Item) Equal(other Item) bool {
	return i.link == other.link
}

// CompareItems orders items by ascending parsed date. Items without a date
// sort after every dated item and are equivalent among themselves.
func CompareItems(a, b Item) int {
	switch {
	case a.hasDate && b.hasDate:
		return a.parsedDate.Compare(b.parsedDate)
	case a.hasDate:
		return -1
	case b.hasDate:
		return 1
	default:
		return 0
	}
}

// SortItems sorts in place with CompareItems, keeping the relative order of
// equivalent items.
func SortItems(items []Item) {
	slices.SortStableFunc(items, CompareItems)
}
