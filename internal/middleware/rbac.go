package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-leads-api/internal/models"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
	"github.com/noah-isme/admission-leads-api/pkg/response"
)

const selfPrefix = "SELF:"

// Self lets a route through when the named path parameter is the caller's own staff id.
func Self(param string) string {
	return selfPrefix + param
}

// RBAC enforces role-based access control for routes.
func RBAC(allowed ...string) gin.HandlerFunc {
	var selfParams []string
	allowedRoles := make(map[models.StaffRole]struct{}, len(allowed))
	for _, a := range allowed {
		if param, ok := strings.CutPrefix(a, selfPrefix); ok {
			selfParams = append(selfParams, param)
			continue
		}
		allowedRoles[models.StaffRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}
		for _, param := range selfParams {
			if targetID := c.Param(param); targetID != "" && targetID == claims.UserID {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role not permitted"))
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.StaffRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}

// Administrators lets superadmins and admins through.
func Administrators() gin.HandlerFunc {
	return RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
}

// Supervisors lets administrators and department heads through.
func Supervisors() gin.HandlerFunc {
	return RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleDepartmentHead)
}

// LeadWorkers lets every role that can call and classify leads through.
func LeadWorkers() gin.HandlerFunc {
	return RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleDepartmentHead, models.RoleTeacher)
}

// AuditorsOrSelf lets auditors through, and the teacher named by param.
func AuditorsOrSelf(param string) gin.HandlerFunc {
	return RBAC(string(models.RoleSuperAdmin), string(models.RoleAdmin), string(models.RoleDepartmentHead), Self(param))
}
