package usercontext

// Shared Locals keys used across controllers and middlewares
const (
	AuthKey    = "authenticated"
	KeyUserID  = "user_id"
	KeyUserCtx = "USER_CONTEXT"
)
