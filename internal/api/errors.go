package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// Error represents an API error
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError creates a new API error
func NewError(status int, code, message string) *Error {
	return &Error{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %s: %s", e.Code, e.Message)
}

// respond writes the error as the JSON response body
func (e *Error) respond(c *gin.Context) {
	c.JSON(e.Status, gin.H{"error": e})
}
