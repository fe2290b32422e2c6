package handler

import (
	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/identity"
)

// Handler holds the HTTP surface's dependencies.
type Handler struct {
	Hub      *chathub.Manager
	Operator *chathub.Operator
	Tokens   *identity.TokenService
}

func NewHandler(hub *chathub.Manager, op *chathub.Operator, tokens *identity.TokenService) *Handler {
	return &Handler{Hub: hub, Operator: op, Tokens: tokens}
}
