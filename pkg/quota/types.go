package quota

// Tier represents a subject's service tier. Tiers gate numeric limits and
// are independent from roles, which gate enforcement bypass.
type Tier string

const (
	TierFree    Tier = "free"
	TierStarter Tier = "starter"
	TierPro     Tier = "pro"
	TierTeam    Tier = "team"
)

// Valid reports whether the tier is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierStarter, TierPro, TierTeam:
		return true
	}
	return false
}

// ParseTier validates a raw tier string.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", ErrUnknownTier
	}
	return t, nil
}

// Role represents a subject's access role.
type Role string

const (
	RoleUser       Role = "user"
	RoleSupport    Role = "support"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSupport, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsBypass reports whether the role is exempt from quota enforcement.
// The bypass set is closed: adding a role here is a deliberate code change,
// not a configuration option.
func (r Role) IsBypass() bool {
	switch r {
	case RoleSupport, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// ParseRole validates a raw role string.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

// Subject identifies the entity quotas and eligibility are evaluated
// against. Key is either an authenticated user identifier or a stable
// anonymous identity derived from network origin; the engine treats both
// uniformly.
type Subject struct {
	Key  string
	Tier Tier
	Role Role
}
