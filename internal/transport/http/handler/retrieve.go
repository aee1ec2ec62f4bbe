package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docpipe/internal/app"
	"docpipe/internal/retrieval"
	"docpipe/internal/transport/http/response"
)

type RetrieveHandler struct {
	retrievalService *app.RetrievalService
}

type RetrieveRequest struct {
	Query       string  `json:"query" binding:"required,max=8192"`
	Threshold   float32 `json:"threshold"`
	MaxChunks   int     `json:"max_chunks" binding:"min=0,max=100"`
	TokenBudget int     `json:"token_budget" binding:"min=0"`
}

func NewRetrieveHandler(retrievalService *app.RetrievalService) *RetrieveHandler {
	return &RetrieveHandler{retrievalService: retrievalService}
}

func (h *RetrieveHandler) Retrieve(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.retrievalService.Retrieve(c.Request.Context(), userID, app.RetrieveInput{
		Query:       req.Query,
		Threshold:   req.Threshold,
		MaxChunks:   req.MaxChunks,
		TokenBudget: req.TokenBudget,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, retrieval.ErrInvalidQuery):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "retrieve failed")
		}
		return
	}

	response.OK(c, result)
}
