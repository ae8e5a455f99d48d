package domain

// ProtectedResource describes a console destination and the role it needs.
type ProtectedResource struct {
	Path         string
	Title        string
	RequiredRole Role
}

// AllowsRole reports whether role may see the resource.
func (r ProtectedResource) AllowsRole(role Role) bool {
	return r.RequiredRole == "" || r.RequiredRole == role
}
