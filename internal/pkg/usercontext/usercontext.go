package usercontext

import "github.com/gofiber/fiber/v2"

// UserContext represents the authenticated student for a request. UserID is
// the app account id that also keys the entitlement store.
type UserContext struct {
	UserID     string `json:"user_id"`
	IsLoggedIn bool   `json:"is_logged_in"`
}

// SetUserContext stores the identity on the fiber context.
func SetUserContext(c *fiber.Ctx, uc UserContext) {
	c.Locals(KeyUserCtx, uc)
	c.Locals(AuthKey, uc.IsLoggedIn)
	c.Locals(KeyUserID, uc.UserID)
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(KeyUserCtx).(UserContext); ok {
		return ctx
	}
	return UserContext{IsLoggedIn: false}
}

// GetUserID returns the current user's ID, or "" if not logged in
func GetUserID(c *fiber.Ctx) string {
	return GetUserContext(c).UserID
}
