package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetAnonID mints a fresh anonymous identity and returns it with its JWT.
func (h *Handler) GetAnonID(c *gin.Context) {
	anonID := h.Tokens.NewAnonID()

	token, err := h.Tokens.Issue(anonID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "anon_id": anonID})
}
