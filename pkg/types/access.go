package types

// AccessGrant is the stored state for a (patient, doctor) pair. At most one
// exists per pair; a re-grant overwrites it and revocation flips Granted
// without deleting the record. ExpiresAt == 0 means no expiry.
type AccessGrant struct {
	Patient   string `json:"patient"`
	Doctor    string `json:"doctor"`
	Granted   bool   `json:"granted"`
	GrantedAt int64  `json:"granted_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// Active reports the derived grant state at the supplied time. Expiry is a
// computed view: nothing ever flips Granted to false on expiry.
func (g *AccessGrant) Active(now int64) bool {
	return g.Granted && (g.ExpiresAt == 0 || now <= g.ExpiresAt)
}

// Expired reports whether the grant's time bound has passed
func (g *AccessGrant) Expired(now int64) bool {
	return g.ExpiresAt > 0 && now > g.ExpiresAt
}

// AccessGrantView is the expiry-adjusted snapshot returned to callers
type AccessGrantView struct {
	Patient   string `json:"patient"`
	Doctor    string `json:"doctor"`
	Granted   bool   `json:"granted"`
	GrantedAt int64  `json:"granted_at"`
	ExpiresAt int64  `json:"expires_at"`
	IsExpired bool   `json:"is_expired"`
}
