package domain

// UserRole enumerates caller roles recognized by the dispatch API. Accounts
// themselves are managed by the surrounding system; the engine only needs the
// role and associated entity carried in the caller's token.
type UserRole string

const (
	UserRoleStoreReporter   UserRole = "STORE_REPORTER"
	UserRoleServiceProvider UserRole = "SERVICE_PROVIDER"
	UserRoleModerator       UserRole = "MODERATOR"
	UserRoleAdmin           UserRole = "ADMIN"
)
