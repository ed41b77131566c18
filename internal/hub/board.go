package hub

import (
	"encoding/json"
	"strings"

	"github.com/amplifyed/pulse/internal/discussion"
)

// The board is the flat question feed every connection shares. Each
// mutation rebroadcasts the whole thread list.

func (h *Hub) questionsUpdate() []Outbound {
	return []Outbound{toAll(EvQuestionsUpdate, QuestionsPayload{Questions: h.ledger.Threads(boardScope)})}
}

func (h *Hub) boardAuthor(req request) discussion.AuthorType {
	if h.roleOf(req.Conn).Privileged() {
		return discussion.AuthorHost
	}
	return discussion.AuthorAudience
}

func handleSubmitQuestion(h *Hub, req request) []Outbound {
	var body struct {
		Text string `json:"text"`
	}
	if err := decode(req.Data, &body); err != nil {
		return invalid(req, err.Error())
	}

	_, err := h.ledger.Create(boardScope, discussion.NewPost{
		Text:       body.Text,
		AuthorType: h.boardAuthor(req),
	})
	if err != nil {
		return ledgerError(req, "", err)
	}
	return h.questionsUpdate()
}

func handleVoteQuestion(h *Hub, req request) []Outbound {
	var body struct {
		ID    string          `json:"id"`
		Delta json.RawMessage `json:"delta"`
	}
	if err := decode(req.Data, &body); err != nil {
		return invalid(req, err.Error())
	}
	direction, err := parseDirection(body.Delta)
	if err != nil {
		return invalid(req, err.Error())
	}

	_, changed, err := h.ledger.Vote(boardScope, body.ID, req.Conn, direction)
	if err != nil {
		return ledgerError(req, body.ID, err)
	}
	if !changed {
		return nil
	}
	return h.questionsUpdate()
}

func handleAddReply(h *Hub, req request) []Outbound {
	var body struct {
		ParentID string `json:"parentId"`
		Text     string `json:"text"`
	}
	if err := decode(req.Data, &body); err != nil {
		return invalid(req, err.Error())
	}
	if body.ParentID == "" {
		return invalid(req, "parentId is required")
	}
	if strings.TrimSpace(body.Text) == "" {
		return invalid(req, discussion.ErrEmptyText.Error())
	}
	if denied := h.allowReply(req, boardScope, body.ParentID); denied != nil {
		return denied
	}

	_, err := h.ledger.Create(boardScope, discussion.NewPost{
		ParentID:   body.ParentID,
		Text:       body.Text,
		AuthorType: h.boardAuthor(req),
	})
	if err != nil {
		return ledgerError(req, body.ParentID, err)
	}
	return h.questionsUpdate()
}

func handleMarkQuestionAnswered(h *Hub, req request) []Outbound {
	var body struct {
		ID string `json:"id"`
	}
	if err := decode(req.Data, &body); err != nil {
		return invalid(req, err.Error())
	}
	if !h.roleOf(req.Conn).Privileged() {
		return invalid(req, "only the stage can mark questions answered")
	}

	changed, err := h.ledger.MarkAnswered(boardScope, body.ID)
	if err != nil {
		return ledgerError(req, body.ID, err)
	}
	if !changed {
		return nil
	}
	return h.questionsUpdate()
}
