package types

// RecordType is the closed set of clinical record categories
type RecordType string

const (
	RecordTypeDiagnosis    RecordType = "Diagnosis"
	RecordTypePrescription RecordType = "Prescription"
	RecordTypeLabResult    RecordType = "LabResult"
	RecordTypeImaging      RecordType = "Imaging"
	RecordTypeProcedure    RecordType = "Procedure"
	RecordTypeImmunization RecordType = "Immunization"
	RecordTypeClinicalNote RecordType = "ClinicalNote"
)

// ValidRecordType reports whether t is a member of the closed enum
func ValidRecordType(t RecordType) bool {
	switch t {
	case RecordTypeDiagnosis, RecordTypePrescription, RecordTypeLabResult,
		RecordTypeImaging, RecordTypeProcedure, RecordTypeImmunization,
		RecordTypeClinicalNote:
		return true
	}
	return false
}

// Record is an immutable medical-record reference. Records are identified by
// a gap-free sequence number assigned at creation and are never deleted;
// only Visible may change afterwards, and only by the record's patient.
type Record struct {
	ID          uint64     `json:"id"`
	Patient     string     `json:"patient"`
	Author      string     `json:"author"`
	ContentHash string     `json:"content_hash"`
	ContentRef  string     `json:"content_ref"`
	RecordType  RecordType `json:"record_type"`
	Visible     bool       `json:"visible"`
	CreatedAt   int64      `json:"created_at"`
}
