package types

// HTTP headers understood by the API surface
const (
	HeaderRequestID     = "X-Request-ID"
	HeaderTenantID      = "X-Tenant-ID"
	HeaderEnvironmentID = "X-Environment-ID"
	HeaderUserID        = "X-User-ID"
)
