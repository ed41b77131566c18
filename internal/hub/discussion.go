package hub

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/amplifyed/pulse/internal/discussion"
	"github.com/amplifyed/pulse/internal/ratelimit"
	"github.com/amplifyed/pulse/internal/session"
)

const notMemberMessage = "join the session first"

// ledgerError maps a discussion error to the single event reported to the
// sender.
func ledgerError(req request, id string, err error) []Outbound {
	if errors.Is(err, discussion.ErrPostNotFound) {
		return []Outbound{toConn(req.Conn, EvPostNotFound, IDPayload{ID: id})}
	}
	return invalid(req, err.Error())
}

// openSession resolves the code named in a discussion payload and checks
// that the sender belongs to it.
func (h *Hub) openSession(req request, rawCode string) (*session.Session, []Outbound) {
	code := session.NormalizeCode(rawCode)
	s, ok := h.registry.Resolve(code)
	if !ok {
		return nil, sessionNotFound(req, code)
	}
	if !h.registry.IsMember(s.Code, req.Conn) {
		return nil, invalid(req, notMemberMessage)
	}
	return s, nil
}

// allowReply checks the parent and then consumes the sender's reply
// allowance, so a rejected reply never costs a cooldown.
func (h *Hub) allowReply(req request, scope, parentID string) []Outbound {
	if err := h.ledger.CheckParent(scope, parentID); err != nil {
		return ledgerError(req, parentID, err)
	}
	if !h.limiter.Allow(req.Conn, ratelimit.Reply, h.clock.Now()) {
		return []Outbound{toConn(req.Conn, EvReplyLimit, LimitPayload{Message: replyLimitMessage})}
	}
	return nil
}

func handleNewMessage(h *Hub, req request) []Outbound {
	var body struct {
		SessionCode string `json:"sessionCode"`
		Text        string `json:"text"`
		ParentID    string `json:"parentId"`
		AuthorType  string `json:"authorType"`
	}
	if err := decode(req.Data, &body); err != nil {
		return invalid(req, err.Error())
	}
	s, denied := h.openSession(req, body.SessionCode)
	if denied != nil {
		return denied
	}
	if strings.TrimSpace(body.Text) == "" {
		return invalid(req, discussion.ErrEmptyText.Error())
	}

	if body.ParentID != "" {
		if denied := h.allowReply(req, s.Code, body.ParentID); denied != nil {
			return denied
		}
	}

	authorType := discussion.ParseAuthorType(body.AuthorType)
	if authorType == discussion.AuthorHost && s.HostID != req.Conn {
		authorType = discussion.AuthorAudience
	}
	name, _ := h.registry.NameOf(s.Code, req.Conn)

	post, err := h.ledger.Create(s.Code, discussion.NewPost{
		ParentID:   body.ParentID,
		Text:       body.Text,
		AuthorType: authorType,
		AuthorName: name,
	})
	if err != nil {
		return ledgerError(req, body.ParentID, err)
	}
	h.logger.Debug("post created", "session", s.Code, "post", post.ID, "reply", post.IsReply())
	return []Outbound{toRoom(s.Code, EvMessageAdded, post)}
}

func handleVote(h *Hub, req request) []Outbound {
	var body struct {
		SessionCode string          `json:"sessionCode"`
		PostID      string          `json:"postId"`
		Direction   json.RawMessage `json:"direction"`
	}
	if err := decode(req.Data, &body); err != nil {
		return invalid(req, err.Error())
	}
	s, denied := h.openSession(req, body.SessionCode)
	if denied != nil {
		return denied
	}
	direction, err := parseDirection(body.Direction)
	if err != nil {
		return invalid(req, err.Error())
	}

	score, changed, err := h.ledger.Vote(s.Code, body.PostID, req.Conn, direction)
	if err != nil {
		return ledgerError(req, body.PostID, err)
	}
	if !changed {
		return nil
	}
	return []Outbound{toRoom(s.Code, EvScoreUpdated, ScorePayload{ID: body.PostID, Score: score})}
}

func handleMarkAnswered(h *Hub, req request) []Outbound {
	var body struct {
		SessionCode string `json:"sessionCode"`
		PostID      string `json:"postId"`
	}
	if err := decode(req.Data, &body); err != nil {
		return invalid(req, err.Error())
	}
	s, denied := h.openSession(req, body.SessionCode)
	if denied != nil {
		return denied
	}
	if s.HostID != req.Conn {
		return invalid(req, "only the host can mark posts answered")
	}

	changed, err := h.ledger.MarkAnswered(s.Code, body.PostID)
	if err != nil {
		return ledgerError(req, body.PostID, err)
	}
	if !changed {
		return nil
	}
	return []Outbound{toRoom(s.Code, EvAnswered, IDPayload{ID: body.PostID})}
}
