package entity

const (
	StatusActive  = "Active"
	StatusPending = "Pending"
)

// Arrest is a detention record. CitizenKey is a plain reference: the row
// survives deletion of the identity, so the identifier number is copied in.
type Arrest struct {
	ID               string `db:"id" json:"id"`
	CitizenKey       string `db:"citizen_key" json:"citizen_key"`
	IdentifierNumber string `db:"identifier_number" json:"identifier_number"`
	Reason           string `db:"reason" json:"reason"`
	Sentence         string `db:"sentence" json:"sentence"`
	FineAmount       int64  `db:"fine_amount" json:"fine_amount"`
	EvidenceURL      string `db:"evidence_url" json:"evidence_url,omitempty"`
	OccurredAt       string `db:"occurred_at" json:"occurred_at"`
	OfficerID        string `db:"officer_id" json:"officer_id"`
	Status           string `db:"status" json:"status"`
}

// Fine is a monetary penalty record, referenced the same way as Arrest.
type Fine struct {
	ID               string `db:"id" json:"id"`
	CitizenKey       string `db:"citizen_key" json:"citizen_key"`
	IdentifierNumber string `db:"identifier_number" json:"identifier_number"`
	Reason           string `db:"reason" json:"reason"`
	Amount           int64  `db:"amount" json:"amount"`
	EvidenceURL      string `db:"evidence_url" json:"evidence_url,omitempty"`
	OccurredAt       string `db:"occurred_at" json:"occurred_at"`
	OfficerID        string `db:"officer_id" json:"officer_id"`
	Status           string `db:"status" json:"status"`
}
