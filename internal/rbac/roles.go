package rbac

// Roles understood by the admin surface. Tokens carry exactly one.
const (
	RoleAdmin    = "admin"    // full admin surface
	RoleOperator = "operator" // provisioning, no destructive maintenance
)

func IsAdmin(role string) bool { return role == RoleAdmin }
