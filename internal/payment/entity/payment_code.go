package entity

// PaymentCode is a one-time voucher issued to a citizen. It is consumed by
// exactly one asset registration and never changes afterwards.
type PaymentCode struct {
	Code        string `db:"code" json:"code"`
	CitizenKey  string `db:"citizen_key" json:"citizen_key"`
	Amount      int64  `db:"amount" json:"amount"`
	Description string `db:"description" json:"description"`
	Used        bool   `db:"used" json:"used"`
	CreatedAt   string `db:"created_at" json:"created_at"`
	UsedAt      string `db:"used_at" json:"used_at,omitempty"`
	IssuerID    string `db:"issuer_id" json:"issuer_id"`
}
