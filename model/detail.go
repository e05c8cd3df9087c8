package model

// PostOperations is the capability object for one scheduled post's detail
// view. Defaults to all-false when the upstream omits it.
type PostOperations struct {
	CanCancel bool `json:"can_cancel"`
	CanRetry  bool `json:"can_retry"`
	CanDelete bool `json:"can_delete"`
}

// PostDetail is the aggregated read model for one scheduled post: the root
// record, its per-platform targets and any resulting published artifacts,
// merged into a single payload. All four keys are always present — nil post,
// empty slices, all-false operations — so rendering code never needs
// null-guards below the top level.
type PostDetail struct {
	ScheduledPost *ScheduledPost   `json:"scheduled_post"`
	Platforms     []PlatformTarget `json:"platforms"`
	SocialPosts   []SocialPost     `json:"social_posts"`
	Operations    PostOperations   `json:"operations"`
}

// Normalize fills in the guaranteed payload shape: slices become empty rather
// than nil so the serialized form always carries all four keys.
func (d *PostDetail) Normalize() {
	if d.Platforms == nil {
		d.Platforms = []PlatformTarget{}
	}
	if d.SocialPosts == nil {
		d.SocialPosts = []SocialPost{}
	}
}

// Settled reports whether every platform target is poll-terminal, i.e. the
// detail view no longer warrants automatic re-polling. A post with no targets
// is settled by definition.
func (d *PostDetail) Settled() bool {
	for _, p := range d.Platforms {
		if !NormalizeTargetStatus(p.Status).PollTerminal() {
			return false
		}
	}
	return true
}

// PostPage is one cursor page of scheduled posts from the durable listing.
type PostPage struct {
	Items      []ScheduledPost `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}
