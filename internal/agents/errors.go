package agents

import (
	"errors"

	"callcenter/internal/apperr"
)

var (
	ErrAgentNotFound = apperr.NotFound("Agent not found")
	ErrAgentBusy     = apperr.InvalidInput("Agent is already on a call")
	ErrInvalidStatus = apperr.InvalidInput("Invalid agent status")
	ErrInvalidRole   = apperr.InvalidInput("Invalid agent role")

	// ErrInvalidCredentials is deliberately not classified: the login handler maps it to 401.
	ErrInvalidCredentials = errors.New("agents: invalid credentials")
)
