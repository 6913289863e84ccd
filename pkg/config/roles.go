package config

import "strings"

// DefaultAdminRoles is the admin allow-list used when DASH_ADMIN_ROLES is empty
var DefaultAdminRoles = []string{"admin"}

// ParseAdminRoleNames parses a comma-separated list of admin role names
// Returns a slice of trimmed, lowercased, non-empty role names
func ParseAdminRoleNames(envValue string) []string {
	roles := splitAndTrim(strings.ToLower(envValue), ",")
	if len(roles) == 0 {
		return append([]string{}, DefaultAdminRoles...)
	}
	return roles
}

// IsAdminRole checks if the given role is in the list of admin roles
// Performs case-insensitive comparison
func IsAdminRole(role string, adminRoles []string) bool {
	for _, adminRole := range adminRoles {
		if strings.EqualFold(adminRole, role) {
			return true
		}
	}
	return false
}

// AccessConfig holds the guard settings of the dashboard routes
type AccessConfig struct {
	AdminRolesRaw string `env:"DASH_ADMIN_ROLES" env-default:"admin"`
	LoginPath     string `env:"DASH_LOGIN_PATH" env-default:"/login"`
}

// AdminRoles returns the roles allowed into the admin area
func (a AccessConfig) AdminRoles() []string {
	return ParseAdminRoleNames(a.AdminRolesRaw)
}

func (a AccessConfig) validate() ValidationErrors {
	errs := CollectErrors(RequireNonEmpty("DASH_LOGIN_PATH", a.LoginPath))
	if a.LoginPath != "" && !strings.HasPrefix(a.LoginPath, "/") {
		errs = append(errs, ValidationError{Field: "DASH_LOGIN_PATH", Message: "must be an absolute path"})
	}
	return errs
}
