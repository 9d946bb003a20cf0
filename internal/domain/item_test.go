package domain

import (
	"testing"
	"time"

	"WerchterMonitor/internal/dates"
)

func TestNewItemParsesDate(t *testing.T) {
	t.Parallel()

	item := NewItem("Line-up", "25 oktober 2024", "https://example.org/a", "")
	got, ok := item.ParsedDate()
	if !ok {
		t.Fatal("expected parsed date")
	}
	if !got.Equal(time.Date(2024, time.October, 25, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date: %v", got)
	}
	if item.FormattedDate() != "25 October 2024" {
		t.Fatalf("unexpected formatted date: %s", item.FormattedDate())
	}
	if _, ok := item.ImageURL(); ok {
		t.Fatal("expected no image")
	}
}

func TestNewItemToleratesBadDate(t *testing.T) {
	t.Parallel()

	item := NewItem("Line-up", "some day", "https://example.org/a", "https://example.org/a.jpg")
	if _, ok := item.ParsedDate(); ok {
		t.Fatal("expected no parsed date")
	}
	if item.FormattedDate() != dates.Unavailable {
		t.Fatalf("unexpected formatted date: %s", item.FormattedDate())
	}
	if img, ok := item.ImageURL(); !ok || img != "https://example.org/a.jpg" {
		t.Fatalf("unexpected image: %q %v", img, ok)
	}
}

func TestEqualUsesLinkOnly(t *testing.T) {
	t.Parallel()

	a := NewItem("One", "2024-10-20", "https://example.org/x", "")
	b := NewItem("Two", "2024-10-21", "https://example.org/x", "img")
	c := NewItem("One", "2024-10-20", "https://example.org/y", "")

	if !a.Equal(b) {
		t.Fatal("items with the same link must be equal")
	}
	if a.Equal(c) {
		t.Fatal("items with different links must differ")
	}
}

func TestCompareItems(t *testing.T) {
	t.Parallel()

	early := NewItem("early", "2024-10-20", "a", "")
	late := NewItem("late", "2024-10-25", "b", "")
	undated := NewItem("undated", "", "c", "")
	undated2 := NewItem("undated2", "garbage", "d", "")

	if CompareItems(early, late) >= 0 {
		t.Fatal("early must sort before late")
	}
	if CompareItems(late, early) <= 0 {
		t.Fatal("late must sort after early")
	}
	if CompareItems(late, undated) >= 0 || CompareItems(undated, late) <= 0 {
		t.Fatal("undated items must sort last")
	}
	if CompareItems(undated, undated2) != 0 {
		t.Fatal("undated items must be equivalent")
	}
	if CompareItems(early, early) != 0 {
		t.Fatal("comparator must be reflexive")
	}
}

func TestSortItemsIsStable(t *testing.T) {
	t.Parallel()

	items := []Item{
		NewItem("u1", "", "u1", ""),
		NewItem("d2", "2024-10-25", "d2", ""),
		NewItem("u2", "n/a", "u2", ""),
		NewItem("d1", "20 October 2024", "d1", ""),
		NewItem("u3", "", "u3", ""),
	}

	SortItems(items)

	want := []string{"d1", "d2", "u1", "u2", "u3"}
	for i, item := range items {
		if item.Link() != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, item.Link(), want[i])
		}
	}
}

func TestNewProcessedRecord(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, time.October, 26, 8, 0, 0, 0, time.UTC)
	rec := NewProcessedRecord(NewItem("Title", "2024-10-25", "link", "img"), at)

	if rec.Link != "link" || rec.Title != "Title" || rec.ImageURL != "img" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.DisplayDate != "25 October 2024" {
		t.Fatalf("unexpected display date: %s", rec.DisplayDate)
	}
	if !rec.ProcessedAt.Equal(at) {
		t.Fatalf("unexpected processed at: %v", rec.ProcessedAt)
	}
}
