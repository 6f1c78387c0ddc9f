// utils/respond.go
package utils

import "github.com/gin-gonic/gin"

// RespondWithError sends a JSON error payload with the given status code.
func RespondWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}
