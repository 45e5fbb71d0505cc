package middleware

import (
	"context"

	"github.com/flexprice/rebill/internal/types"
	"github.com/gin-gonic/gin"
)

// RequestIDMiddleware attaches a request id to the context and echoes it in
// the response headers
func RequestIDMiddleware(c *gin.Context) {
	ctx := c.Request.Context()

	requestID := c.GetHeader(types.HeaderRequestID)
	if requestID == "" {
		requestID = types.GenerateUUID()
	}

	ctx = context.WithValue(ctx, types.CtxRequestID, requestID)
	c.Request = c.Request.WithContext(ctx)

	c.Header(types.HeaderRequestID, requestID)
	c.Next()
}
