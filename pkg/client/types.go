package client

// AccountSummary is one entry of a following page.
type AccountSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Profile is the enriched view of an account returned by the profile lookup.
type Profile struct {
	FullName       string `json:"full_name"`
	Username       string `json:"username"`
	Biography      string `json:"biography"`
	FollowerCount  int64  `json:"follower_count"`
	FollowingCount int64  `json:"following_count"`
	Category       string `json:"category"`
	ID             int64  `json:"id"`

	// DeclaredFollowing is the following-edge total at lookup time. It is a
	// snapshot and may be stale by the time paging completes.
	DeclaredFollowing int64 `json:"-"`
}

// Page is one offset-addressed slice of a following list.
type Page struct {
	Offset int
	Users  []AccountSummary
}

// HasMore reports whether the page returned any accounts.
func (p Page) HasMore() bool {
	return len(p.Users) > 0
}
