package auth

// Allow reports whether role is one of allowed. An empty allowed list
// permits nobody.
func Allow(role Role, allowed ...Role) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}
