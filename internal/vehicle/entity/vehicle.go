package entity

// Vehicle is a registered vehicle, paid for with one payment code.
type Vehicle struct {
	ID               string `db:"id" json:"id"`
	CitizenKey       string `db:"citizen_key" json:"citizen_key"`
	Plate            string `db:"plate" json:"plate"`
	Make             string `db:"make" json:"make"`
	Model            string `db:"model" json:"model"`
	Category         string `db:"category" json:"category"`
	Year             int    `db:"year" json:"year"`
	Color            string `db:"color" json:"color"`
	InspectionStatus string `db:"inspection_status" json:"inspection_status"`
	PermitStatus     string `db:"permit_status" json:"permit_status"`
	PaymentCode      string `db:"payment_code" json:"payment_code"`
	ImageURL         string `db:"image_url" json:"image_url,omitempty"`
	RegisteredOn     string `db:"registered_on" json:"registered_on"`
	RegistrarID      string `db:"registrar_id" json:"registrar_id"`
}
