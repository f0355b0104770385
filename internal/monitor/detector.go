package monitor

import (
	"time"

	"github.com/google/uuid"

	"github.com/jamesweston/viral-monitor/internal/store"
)

// DefaultViralThreshold is the view-count delta that marks a video as
// viral when no threshold is configured.
const DefaultViralThreshold = 100

// Detect compares the current sample of a video against its previously
// stored snapshot and returns a ViralEvent when the view count grew by at
// least threshold since the last sample.
//
// A nil previous snapshot means first sighting: there is no baseline, so
// no event is produced regardless of the absolute view count. A view
// count that decreased is treated as measurement noise and suppressed.
func Detect(previous *store.VideoSnapshot, current store.VideoSnapshot, threshold int64, now time.Time) (ViralEvent, bool) {
	if previous == nil {
		return ViralEvent{}, false
	}
	delta := current.Views - previous.Views
	if delta < 0 || delta < threshold {
		return ViralEvent{}, false
	}
	desc := ""
	if current.Description != nil {
		desc = *current.Description
	}
	return ViralEvent{
		ID:            uuid.NewString(),
		Username:      current.Username,
		VideoID:       current.VideoID,
		Description:   desc,
		PreviousViews: previous.Views,
		CurrentViews:  current.Views,
		Delta:         delta,
		Likes:         current.Likes,
		Comments:      current.Comments,
		Shares:        current.Shares,
		DetectedAt:    now,
	}, true
}
