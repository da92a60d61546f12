package entity

// Property is a registered real-estate unit identified by its address token.
type Property struct {
	ID           string `db:"id" json:"id"`
	CitizenKey   string `db:"citizen_key" json:"citizen_key"`
	Address      string `db:"address" json:"address"`
	Zone         string `db:"zone" json:"zone"`
	Color        string `db:"color" json:"color"`
	Floors       int    `db:"floors" json:"floors"`
	PaymentCode  string `db:"payment_code" json:"payment_code"`
	ImageURL     string `db:"image_url" json:"image_url,omitempty"`
	RegisteredOn string `db:"registered_on" json:"registered_on"`
	RegistrarID  string `db:"registrar_id" json:"registrar_id"`
}
