package discussion

import (
	"time"
)

// AuthorType tells a host post apart from an audience post.
type AuthorType string

const (
	AuthorAudience AuthorType = "audience"
	AuthorHost     AuthorType = "host"
)

// ParseAuthorType accepts "host" and maps everything else to audience.
func ParseAuthorType(s string) AuthorType {
	if s == string(AuthorHost) {
		return AuthorHost
	}
	return AuthorAudience
}

// Post is a top-level discussion item or a reply to one. Values handed out
// by the Ledger are copies and carry no vote map.
type Post struct {
	ID          string     `json:"id"`
	SessionCode string     `json:"sessionCode,omitempty"`
	ParentID    string     `json:"parentId,omitempty"`
	Text        string     `json:"text"`
	AuthorType  AuthorType `json:"authorType"`
	AuthorName  string     `json:"authorName,omitempty"`
	CreatedAt   time.Time  `json:"timestamp"`
	Score       int        `json:"score"`
	Answered    bool       `json:"answered"`
}

// IsReply reports whether the post hangs under another post.
func (p Post) IsReply() bool {
	return p.ParentID != ""
}

// Thread is a top-level post with its replies, in insertion order.
type Thread struct {
	Post
	Replies []Post `json:"replies"`
}

// NewPost carries the caller-supplied fields of a post.
type NewPost struct {
	ParentID   string
	Text       string
	AuthorType AuthorType
	AuthorName string
}
