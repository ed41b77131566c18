package hub

import (
	"github.com/amplifyed/pulse/internal/discussion"
	"github.com/amplifyed/pulse/internal/pulse"
)

// Inbound client events.
const (
	EvRegisterRole         = "registerRole"
	EvHostCreateSession    = "host:createSession"
	EvStageRequestSession  = "stage:requestSession"
	EvJoinSession          = "audience:joinSession"
	EvLeaveSession         = "audience:leaveSession"
	EvPulseUpdate          = "pulse:update"
	EvReaction             = "reaction"
	EvNewMessage           = "discussion:newMessage"
	EvVote                 = "discussion:vote"
	EvMarkAnswered         = "discussion:markAnswered"
	EvSubmitQuestion       = "submitQuestion"
	EvVoteQuestion         = "voteQuestion"
	EvAddReply             = "addReply"
	EvMarkQuestionAnswered = "markQuestionAnswered"
)

// Outbound server events.
const (
	EvSessionCreated    = "host:sessionCreated"
	EvParticipantJoined = "host:participantJoined"
	EvParticipantLeft   = "host:participantLeft"
	EvSessionJoined     = "audience:sessionJoined"
	EvSessionNotFound   = "audience:sessionNotFound"
	EvSessionEnded      = "session:ended"
	EvPulseData         = "pulseData"
	EvParticipantCount  = "participantCount"
	EvIdentity          = "discussion:identity"
	EvInitialState      = "discussion:initialState"
	EvMessageAdded      = "discussion:messageAdded"
	EvScoreUpdated      = "discussion:scoreUpdated"
	EvAnswered          = "discussion:answered"
	EvPostNotFound      = "discussion:postNotFound"
	EvQuestionsUpdate   = "questionsUpdate"
	EvReactionLimit     = "reactionLimit"
	EvReplyLimit        = "replyLimit"
	EvValidationError   = "validationError"
)

const (
	reactionLimitMessage = "Hold up a second before changing your reaction again."
	replyLimitMessage    = "Give it a moment before posting another reply."
)

type CodePayload struct {
	Code string `json:"code"`
}

type PulsePayload struct {
	CurrentPulse float64         `json:"currentPulse"`
	Reactions    int             `json:"reactions"`
	Breakdown    pulse.Breakdown `json:"breakdown"`
}

type CountPayload struct {
	Count int `json:"count"`
}

type IdentityPayload struct {
	AuthorName string `json:"authorName"`
}

type ScorePayload struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
}

type IDPayload struct {
	ID string `json:"id"`
}

type QuestionsPayload struct {
	Questions []discussion.Thread `json:"questions"`
}

type LimitPayload struct {
	Message string `json:"message"`
}

type ValidationPayload struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}
