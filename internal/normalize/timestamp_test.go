package normalize

import (
	"testing"
	"time"

	"github.com/hitoshi/endzone/internal/model"
)

func ptr(t time.Time) *time.Time { return &t }

func TestResolveTimestamp_Order(t *testing.T) {
	now := time.Date(2025, 10, 14, 12, 0, 0, 0, time.UTC)
	published := time.Date(2025, 10, 13, 8, 0, 0, 0, time.UTC)
	updated := time.Date(2025, 10, 12, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		item          model.RawItem
		want          time.Time
		wantEstimated bool
	}{
		{
			name: "published wins over updated and text",
			item: model.RawItem{Published: ptr(published), Updated: ptr(updated), DateText: "2025-01-01"},
			want: published,
		},
		{
			name: "updated when published missing",
			item: model.RawItem{Updated: ptr(updated), DateText: "2025-01-01"},
			want: updated,
		},
		{
			name: "string date when no structured field",
			item: model.RawItem{DateText: "Mon, 13 Oct 2025 08:00:00 GMT"},
			want: published,
		},
		{
			name:          "unparsable string falls back to now",
			item:          model.RawItem{DateText: "sometime last week"},
			want:          now,
			wantEstimated: true,
		},
		{
			name:          "nothing at all falls back to now",
			item:          model.RawItem{},
			want:          now,
			wantEstimated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, estimated := ResolveTimestamp(tt.item, now)
			if !got.Equal(tt.want) {
				t.Errorf("ResolveTimestamp() = %v, want %v", got, tt.want)
			}
			if estimated != tt.wantEstimated {
				t.Errorf("estimated = %v, want %v", estimated, tt.wantEstimated)
			}
		})
	}
}

func TestResolveTimestamp_ConvertsToUTC(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	published := time.Date(2025, 10, 13, 8, 0, 0, 0, est)

	got, _ := ResolveTimestamp(model.RawItem{Published: &published}, time.Now())

	if got.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", got.Location())
	}
	if !got.Equal(published) {
		t.Errorf("instant changed: %v != %v", got, published)
	}
}

func TestWithinWindow_InclusiveBoundary(t *testing.T) {
	now := time.Date(2025, 10, 14, 12, 0, 0, 0, time.UTC)
	window := 24 * time.Hour
	cutoff := now.Add(-window)

	if !WithinWindow(cutoff, now, window) {
		t.Error("timestamp exactly at the cutoff should be included")
	}
	if WithinWindow(cutoff.Add(-time.Nanosecond), now, window) {
		t.Error("timestamp just before the cutoff should be excluded")
	}
	if !WithinWindow(now.Add(time.Hour), now, window) {
		t.Error("future timestamp should be included")
	}
}
