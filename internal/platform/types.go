package platform

import "time"

// Profile is the account's current profile summary
type Profile struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Biography         string `json:"biography"`
	ProfilePictureURL string `json:"profile_picture_url"`
	FollowersCount    int64  `json:"followers_count"`
	FollowsCount      int64  `json:"follows_count"`
	MediaCount        int64  `json:"media_count"`
}

// Media is one post from the account's media list
type Media struct {
	ID               string    `json:"id"`
	Caption          string    `json:"caption"`
	MediaType        string    `json:"media_type"`         // IMAGE, VIDEO, CAROUSEL_ALBUM
	MediaProductType string    `json:"media_product_type"` // FEED, REELS, STORY
	MediaURL         string    `json:"media_url"`
	Permalink        string    `json:"permalink"`
	Timestamp        time.Time `json:"timestamp"`
}

// IsVideo reports whether the media carries watch-time metrics
func (m Media) IsVideo() bool {
	return m.MediaType == "VIDEO" || m.MediaProductType == "REELS"
}

// MediaMetrics holds the insight counters for one post
type MediaMetrics struct {
	Reach       int64
	Saved       int64
	Likes       int64
	Comments    int64
	Shares      int64
	Views       int64
	WatchTimeMs int64
}

// DayCount is one sample of a daily time series
type DayCount struct {
	Date  time.Time
	Value int64
}

// Demographics holds audience breakdowns. Any map may be empty when the
// platform withholds the breakdown for the account.
type Demographics struct {
	AgeGender map[string]int64
	City      map[string]int64
	Country   map[string]int64
}

// Empty reports whether no breakdown was returned at all
func (d *Demographics) Empty() bool {
	return d == nil || (len(d.AgeGender) == 0 && len(d.City) == 0 && len(d.Country) == 0)
}
