package types

import "time"

// User represents a login account for a health worker, lab technician,
// or administrator.
type User struct {
	// ID is the stable identifier of the user (e.g., "user-001").
	ID string `json:"id" db:"id"`

	// Username is the unique login name chosen for the user.
	Username string `json:"username" db:"username"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Role is a free-text role label (e.g., "Health Worker",
	// "Lab Technician", "Administrator").
	Role string `json:"role" db:"role"`

	// Email is the user's email address, if known.
	Email string `json:"email" db:"email"`

	// PhoneNumber is the user's contact number, if known.
	PhoneNumber string `json:"phoneNumber" db:"phone_number"`

	// PHCName is the Primary Health Center the user works at.
	PHCName string `json:"phcName" db:"phc_name"`

	// HubName is the hub/zone the user belongs to.
	HubName string `json:"hubName" db:"hub_name"`

	// BlockName is the administrative block the user belongs to.
	BlockName string `json:"blockName" db:"block_name"`

	// DistrictName is the district the user belongs to.
	DistrictName string `json:"districtName" db:"district_name"`

	// HealthCenter and District are legacy aliases of PHCName and
	// DistrictName kept for older clients.
	HealthCenter string `json:"healthCenter" db:"health_center"`
	District     string `json:"district" db:"district"`

	// State is the user's state, defaulting to "Tamil Nadu".
	State string `json:"state" db:"state"`

	// LastLogin is the timestamp of the most recent successful login.
	LastLogin *time.Time `json:"lastLogin,omitempty" db:"last_login"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
