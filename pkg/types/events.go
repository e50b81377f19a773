package types

// Contract event names. Every mutating operation emits exactly one event
// (registration additionally emits a lookup-linked event); these events are
// the only durable narrative of history beyond current-state snapshots.
const (
	EventIdentityRegistered      = "IdentityRegistered"
	EventHealthIDLinked          = "HealthIDLinked"
	EventDoctorIDLinked          = "DoctorIDLinked"
	EventDoctorVerified          = "DoctorVerified"
	EventProfileUpdated          = "ProfileUpdated"
	EventRecordCreated           = "RecordCreated"
	EventRecordVisibilityToggled = "RecordVisibilityToggled"
	EventAccessGranted           = "AccessGranted"
	EventAccessRevoked           = "AccessRevoked"
)

// Event is the structured payload attached to a contract event. Fields not
// relevant to an operation are left empty and omitted from the JSON.
type Event struct {
	Operation string `json:"operation"`
	Principal string `json:"principal,omitempty"`
	Patient   string `json:"patient,omitempty"`
	Doctor    string `json:"doctor,omitempty"`
	RecordID  uint64 `json:"record_id,omitempty"`
	HealthID  string `json:"health_id,omitempty"`
	DoctorID  string `json:"doctor_id,omitempty"`
	Visible   bool   `json:"visible,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
