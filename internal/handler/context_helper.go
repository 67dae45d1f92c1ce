package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// resolveSchoolID prefers an explicit id from the body, then the schoolId query
// parameter, then the caller's token.
func resolveSchoolID(c *gin.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if schoolID := c.Query("schoolId"); schoolID != "" {
		return schoolID
	}
	if claims := claimsFromContext(c); claims != nil {
		return claims.SchoolID
	}
	return ""
}

func currentUserID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}
