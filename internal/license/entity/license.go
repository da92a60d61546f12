package entity

// License is a driving (or weapons) license of one class held by a citizen.
type License struct {
	ID         string `db:"id" json:"id"`
	CitizenKey string `db:"citizen_key" json:"citizen_key"`
	ClassCode  string `db:"class_code" json:"class_code"`
	Label      string `db:"label" json:"label"`
	IssuedOn   string `db:"issued_on" json:"issued_on"`
	ExpiresOn  string `db:"expires_on" json:"expires_on"`
	IssuerID   string `db:"issuer_id" json:"issuer_id"`
}
