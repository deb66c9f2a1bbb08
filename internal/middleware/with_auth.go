package middleware

import "github.com/gofiber/fiber/v2"

// AuthOptions decides how routes are protected. An empty Secret disables
// authentication entirely, which suits a single-operator desk.
type AuthOptions struct {
	Secret     string
	WriteRoles []string
}

// Enabled reports whether bearer tokens are required.
func (o AuthOptions) Enabled() bool {
	return o.Secret != ""
}

// Authenticate returns the token check for a route group, or a pass-through when auth is off.
func Authenticate(opts AuthOptions) fiber.Handler {
	if !opts.Enabled() {
		return passThrough
	}
	return JWTProtected(opts.Secret)
}

// AuthorizeWrite guards routes that change records or issue certificates.
func AuthorizeWrite(opts AuthOptions) fiber.Handler {
	if !opts.Enabled() {
		return passThrough
	}
	roles := opts.WriteRoles
	if len(roles) == 0 {
		roles = []string{RoleAdmin, RoleStaff}
	}
	return RequireRole(roles...)
}

func passThrough(c *fiber.Ctx) error {
	return c.Next()
}
