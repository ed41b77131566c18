// Package discussion implements the discussion ledger: posts, one level of
// replies, and per-voter tri-state votes with an incrementally kept score.
//
// The ledger is scoped. A session-coded discussion uses the session code as
// its scope; the flat question board uses BoardScope. Both share the same
// rules.
package discussion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amplifyed/pulse/internal/session"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// BoardScope is the scope of the flat, session-less question board.
const BoardScope = ""

var (
	ErrEmptyText        = errors.New("post text is empty")
	ErrPostNotFound     = errors.New("post not found")
	ErrNestedReply      = errors.New("replies cannot be replied to")
	ErrInvalidDirection = errors.New("vote direction must be -1, 0 or 1")
)

type entry struct {
	post  Post
	votes map[session.ConnID]int
}

type board struct {
	order    []*entry
	byID     map[string]*entry
	children map[string][]*entry
}

func newBoard() *board {
	return &board{
		byID:     make(map[string]*entry),
		children: make(map[string][]*entry),
	}
}

// Ledger owns the posts of every scope. It is not safe for concurrent use.
type Ledger struct {
	clock  clockwork.Clock
	newID  func() string
	boards map[string]*board
}

func NewLedger(clock clockwork.Clock) *Ledger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Ledger{
		clock:  clock,
		newID:  uuid.NewString,
		boards: make(map[string]*board),
	}
}

func (l *Ledger) lookup(scope, id string) (*entry, error) {
	b, ok := l.boards[scope]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPostNotFound, id)
	}
	e, ok := b.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPostNotFound, id)
	}
	return e, nil
}

// CheckParent reports whether a reply to parentID would be accepted.
func (l *Ledger) CheckParent(scope, parentID string) error {
	parent, err := l.lookup(scope, parentID)
	if err != nil {
		return err
	}
	if parent.post.IsReply() {
		return ErrNestedReply
	}
	return nil
}

// Create appends a post (or a reply when np.ParentID is set) to scope.
func (l *Ledger) Create(scope string, np NewPost) (Post, error) {
	text := strings.TrimSpace(np.Text)
	if text == "" {
		return Post{}, ErrEmptyText
	}
	if np.ParentID != "" {
		if err := l.CheckParent(scope, np.ParentID); err != nil {
			return Post{}, err
		}
	}

	b, ok := l.boards[scope]
	if !ok {
		b = newBoard()
		l.boards[scope] = b
	}

	authorType := np.AuthorType
	if authorType != AuthorHost {
		authorType = AuthorAudience
	}

	e := &entry{
		post: Post{
			ID:          l.newID(),
			SessionCode: scope,
			ParentID:    np.ParentID,
			Text:        text,
			AuthorType:  authorType,
			AuthorName:  np.AuthorName,
			CreatedAt:   l.clock.Now(),
		},
		votes: make(map[session.ConnID]int),
	}
	b.order = append(b.order, e)
	b.byID[e.post.ID] = e
	if e.post.ParentID != "" {
		b.children[e.post.ParentID] = append(b.children[e.post.ParentID], e)
	}
	return e.post, nil
}

// Vote records voter's direction on a post and returns the post's score.
// Repeating the current direction changes nothing and reports changed=false.
func (l *Ledger) Vote(scope, postID string, voter session.ConnID, direction int) (score int, changed bool, err error) {
	if direction < -1 || direction > 1 {
		return 0, false, ErrInvalidDirection
	}
	e, err := l.lookup(scope, postID)
	if err != nil {
		return 0, false, err
	}

	prior := e.votes[voter]
	if prior == direction {
		return e.post.Score, false, nil
	}

	e.post.Score += direction - prior
	if direction == 0 {
		delete(e.votes, voter)
	} else {
		e.votes[voter] = direction
	}
	return e.post.Score, true, nil
}

// VoteOf returns voter's current direction on a post, 0 when none.
func (l *Ledger) VoteOf(scope, postID string, voter session.ConnID) int {
	e, err := l.lookup(scope, postID)
	if err != nil {
		return 0
	}
	return e.votes[voter]
}

// MarkAnswered flags a post as answered. The flag never clears.
func (l *Ledger) MarkAnswered(scope, postID string) (changed bool, err error) {
	e, err := l.lookup(scope, postID)
	if err != nil {
		return false, err
	}
	if e.post.Answered {
		return false, nil
	}
	e.post.Answered = true
	return true, nil
}

// Get returns a copy of one post.
func (l *Ledger) Get(scope, postID string) (Post, error) {
	e, err := l.lookup(scope, postID)
	if err != nil {
		return Post{}, err
	}
	return e.post, nil
}

// List returns every post in scope, replies included, in insertion order.
// Ordering for display is left to clients.
func (l *Ledger) List(scope string) []Post {
	b, ok := l.boards[scope]
	if !ok {
		return []Post{}
	}
	posts := make([]Post, len(b.order))
	for i, e := range b.order {
		posts[i] = e.post
	}
	return posts
}

// Replies returns the replies to parentID in insertion order.
func (l *Ledger) Replies(scope, parentID string) []Post {
	b, ok := l.boards[scope]
	if !ok {
		return []Post{}
	}
	kids := b.children[parentID]
	replies := make([]Post, len(kids))
	for i, e := range kids {
		replies[i] = e.post
	}
	return replies
}

// Threads returns the top-level posts of scope in insertion order, each
// with its replies nested.
func (l *Ledger) Threads(scope string) []Thread {
	b, ok := l.boards[scope]
	if !ok {
		return []Thread{}
	}
	threads := make([]Thread, 0, len(b.order))
	for _, e := range b.order {
		if e.post.IsReply() {
			continue
		}
		threads = append(threads, Thread{Post: e.post, Replies: l.Replies(scope, e.post.ID)})
	}
	return threads
}

// Len returns the number of posts in scope.
func (l *Ledger) Len(scope string) int {
	if b, ok := l.boards[scope]; ok {
		return len(b.order)
	}
	return 0
}

// DropScope discards every post of scope. Called when a session ends.
func (l *Ledger) DropScope(scope string) {
	delete(l.boards, scope)
}

// Verify checks that every post's score equals the sum of its recorded votes.
func (l *Ledger) Verify(scope string) error {
	b, ok := l.boards[scope]
	if !ok {
		return nil
	}
	for _, e := range b.order {
		sum := 0
		for _, v := range e.votes {
			sum += v
		}
		if sum != e.post.Score {
			return fmt.Errorf("post %s: score %d, votes sum to %d", e.post.ID, e.post.Score, sum)
		}
	}
	return nil
}
