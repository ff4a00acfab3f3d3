package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/agriqa/pkg/utils/errors"
	"github.com/kart-io/agriqa/pkg/utils/response"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Query          string `json:"query" validate:"required,notblank,max=2000"`
	ConversationID string `json:"conversation_id" validate:"omitempty,max=128,nowhitespace"`
}

// EntitiesRequest is the body of POST /entities.
type EntitiesRequest struct {
	Query string `json:"query" validate:"required,notblank,max=2000"`
}

// Chat answers one question within the chat time limit.
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if !h.bind(c, &req, errors.ErrInvalidQuery) {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.chatTimeout)
	defer cancel()

	resp, err := h.qa.Process(ctx, req.Query, req.ConversationID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, resp)
}

// Entities extracts the states, districts, crops and years of a question.
func (h *Handler) Entities(c *gin.Context) {
	var req EntitiesRequest
	if !h.bind(c, &req, errors.ErrInvalidQuery) {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.chatTimeout)
	defer cancel()

	entities, err := h.qa.ExtractEntities(ctx, req.Query)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, entities)
}

// Conversation is reserved for conversation history, which is not stored.
func (h *Handler) Conversation(c *gin.Context) {
	response.Fail(c, errors.ErrNotImplemented.WithMessagef("conversation history for %s is not stored", c.Param("id")))
}
