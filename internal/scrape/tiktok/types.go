package tiktok

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jamesweston/viral-monitor/internal/monitor"
	"github.com/jamesweston/viral-monitor/internal/scrape"
)

var (
	ssrTagOpen  = []byte(`<script id="__UNIVERSAL_DATA_FOR_REHYDRATION__" type="application/json">`)
	ssrTagClose = []byte(`</script>`)
)

// Raw structs matching the rehydration JSON exactly.

type universalData struct {
	DefaultScope defaultScope `json:"__DEFAULT_SCOPE__"`
}

type defaultScope struct {
	UserDetail userDetailWrapper `json:"webapp.user-detail"`
	UserPost   userPostWrapper   `json:"webapp.user-post"`
}

type userDetailWrapper struct {
	UserInfo   rawUserInfo `json:"userInfo"`
	StatusCode int         `json:"statusCode"`
}

type userPostWrapper struct {
	ItemList []rawVideo `json:"itemList"`
}

type rawUserInfo struct {
	User rawUser `json:"user"`
}

type rawUser struct {
	ID             string `json:"id"`
	UniqueID       string `json:"uniqueId"`
	PrivateAccount bool   `json:"privateAccount"`
}

type rawVideo struct {
	ID         string   `json:"id"`
	Desc       string   `json:"desc"`
	CreateTime int64    `json:"createTime"`
	Stats      rawStats `json:"stats"`
}

type rawStats struct {
	PlayCount    int64 `json:"playCount"`
	DiggCount    int64 `json:"diggCount"`
	ShareCount   int64 `json:"shareCount"`
	CommentCount int64 `json:"commentCount"`
}

// userDetailNotFound is the statusCode TikTok embeds for missing accounts.
const userDetailNotFound = 10202

// extractVideos locates the rehydration script tag in the profile HTML and
// converts its item list to the scraper's wire type.
func extractVideos(htmlBody []byte, handle string) ([]monitor.RawVideo, error) {
	start := bytes.Index(htmlBody, ssrTagOpen)
	if start == -1 {
		return nil, fmt.Errorf("profile @%s: rehydration script tag not found", handle)
	}
	start += len(ssrTagOpen)

	end := bytes.Index(htmlBody[start:], ssrTagClose)
	if end == -1 {
		return nil, fmt.Errorf("profile @%s: closing script tag not found", handle)
	}

	var data universalData
	if err := json.Unmarshal(htmlBody[start:start+end], &data); err != nil {
		return nil, fmt.Errorf("profile @%s: unmarshal rehydration data: %w", handle, err)
	}

	detail := data.DefaultScope.UserDetail
	if detail.StatusCode == userDetailNotFound || detail.UserInfo.User.UniqueID == "" {
		return nil, scrape.ErrAccountNotFound
	}
	if detail.UserInfo.User.PrivateAccount {
		return nil, nil
	}

	items := data.DefaultScope.UserPost.ItemList
	videos := make([]monitor.RawVideo, 0, len(items))
	for _, raw := range items {
		videos = append(videos, parseVideo(raw))
	}
	return videos, nil
}

func parseVideo(raw rawVideo) monitor.RawVideo {
	v := monitor.RawVideo{
		ID:          raw.ID,
		Description: raw.Desc,
		Views:       raw.Stats.PlayCount,
		Likes:       raw.Stats.DiggCount,
		Comments:    raw.Stats.CommentCount,
		Shares:      raw.Stats.ShareCount,
	}
	if raw.CreateTime > 0 {
		t := time.Unix(raw.CreateTime, 0).UTC()
		v.CreatedAt = &t
	}
	return v
}
