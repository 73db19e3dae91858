package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OK writes a 200 JSON response with the given payload.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Error writes the uniform error envelope. Every client-visible failure in
// the API goes through here; handlers never write ad hoc error bodies.
func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}
