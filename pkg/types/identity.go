package types

// Role represents the registered role of a principal
type Role string

const (
	RoleNone    Role = "none"
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Identity is the on-chain identity of a principal. At most one exists per
// principal; the role is immutable once set and Verified only ever
// transitions false to true (doctors, by the administrator).
type Identity struct {
	Principal      string `json:"principal"`
	CredentialHash string `json:"credential_hash"`
	Role           Role   `json:"role"`
	ProfileRef     string `json:"profile_ref"`
	Verified       bool   `json:"verified"`
	HealthID       string `json:"health_id,omitempty"`
	DoctorID       string `json:"doctor_id,omitempty"`
	RegisteredAt   int64  `json:"registered_at"`
}
