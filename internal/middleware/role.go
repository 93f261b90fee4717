package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-occurrences-api/internal/models"
	appErrors "github.com/noah-isme/sma-occurrences-api/pkg/errors"
	"github.com/noah-isme/sma-occurrences-api/pkg/response"
)

const (
	// ContextRoleKey stores the follow-up role of the request.
	ContextRoleKey = "followUpRole"
	// RoleHeader carries the follow-up role chosen by the caller.
	RoleHeader = "X-Follow-Up-Role"
)

// FollowUpRole resolves the caller's follow-up role from the RoleHeader
// header or the role query parameter. Requests without a role are view-only;
// unknown roles are rejected.
func FollowUpRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(RoleHeader)
		if raw == "" {
			raw = c.Query("role")
		}
		role, ok := models.ParseFollowUpRole(raw)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("unknown follow-up role %q", raw)))
			c.Abort()
			return
		}
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// RoleFromContext returns the role stored by FollowUpRole, or RoleView.
func RoleFromContext(c *gin.Context) models.FollowUpRole {
	value, exists := c.Get(ContextRoleKey)
	if !exists {
		return models.RoleView
	}
	role, ok := value.(models.FollowUpRole)
	if !ok {
		return models.RoleView
	}
	return role
}

// LogFields reports the follow-up role and target occurrence of a request
// for the access log.
func LogFields(c *gin.Context) []zap.Field {
	var fields []zap.Field
	if value, exists := c.Get(ContextRoleKey); exists {
		if role, ok := value.(models.FollowUpRole); ok {
			fields = append(fields, zap.String("follow_up_role", string(role)))
		}
	}
	if id := c.Param("id"); id != "" {
		fields = append(fields, zap.String("occurrence_id", id))
	}
	return fields
}
