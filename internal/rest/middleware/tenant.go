package middleware

import (
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
	"github.com/gin-gonic/gin"
)

// TenantMiddleware resolves tenant and environment scope from request
// headers and threads it through the request context. Webhook routes skip
// this middleware: their scope is restored from the payment row instead.
func TenantMiddleware(c *gin.Context) {
	tenantID := c.GetHeader(types.HeaderTenantID)
	if tenantID == "" {
		c.Error(ierr.NewError("missing tenant header").
			WithHintf("The %s header is required", types.HeaderTenantID).
			Mark(ierr.ErrPermissionDenied))
		c.Abort()
		return
	}

	ctx := c.Request.Context()
	ctx = types.SetTenantID(ctx, tenantID)
	ctx = types.SetEnvironmentID(ctx, c.GetHeader(types.HeaderEnvironmentID))

	userID := c.GetHeader(types.HeaderUserID)
	if userID == "" {
		userID = types.DefaultUserID
	}
	ctx = types.SetUserID(ctx, userID)

	c.Request = c.Request.WithContext(ctx)
	c.Next()
}
