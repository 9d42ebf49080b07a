package conferences

import "callcenter/internal/apperr"

var (
	ErrConferenceNotFound      = apperr.NotFound("Conference not found")
	ErrParticipantNotFound     = apperr.NotFound("Participant not found")
	ErrInvalidConferenceAction = apperr.InvalidInput("Invalid conference action")
)
