package constants

// gRPC metadata keys the auth gateway (and the field agent) set on
// every call. The server's auth interceptor reads these.
const (
	MetadataRoleKey    = "x-rugflow-role"
	MetadataUserIDKey  = "x-rugflow-user-id"
	MetadataCompanyKey = "x-rugflow-company-id"
)
