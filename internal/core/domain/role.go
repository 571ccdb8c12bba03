package domain

// Role is the kind of account acting on a booking.
type Role string

const (
	RoleRenter   Role = "renter"
	RoleLandlord Role = "landlord"
	RoleAdmin    Role = "admin"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleRenter, RoleLandlord, RoleAdmin:
		return true
	}
	return false
}

// Actor identifies who is calling into the booking core.
type Actor struct {
	UserID   string
	Role     Role
	Diaspora bool
}

// CanView reports whether the actor may read the booking.
func (a Actor) CanView(b *BookingRecord) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleLandlord:
		return b.LandlordID == a.UserID
	case RoleRenter:
		return b.RenterID == a.UserID
	}
	return false
}
