package entity

// Identity is a citizen's identity card. It is keyed by the caller's external
// id and carries a generated identifier number (RUT style, "12345678-K").
type Identity struct {
	CitizenKey       string `db:"citizen_key" json:"citizen_key"`
	IdentifierNumber string `db:"identifier_number" json:"identifier_number"`
	FirstName        string `db:"first_name" json:"first_name"`
	SecondName       string `db:"second_name" json:"second_name"`
	PaternalSurname  string `db:"paternal_surname" json:"paternal_surname"`
	MaternalSurname  string `db:"maternal_surname" json:"maternal_surname"`
	BirthDate        string `db:"birth_date" json:"birth_date"`
	Age              int    `db:"age" json:"age"`
	Nationality      string `db:"nationality" json:"nationality"`
	Sex              string `db:"sex" json:"sex"`
	ProfileHandle    string `db:"profile_handle" json:"profile_handle"`
	AvatarURL        string `db:"avatar_url" json:"avatar_url,omitempty"`
	IssuedOn         string `db:"issued_on" json:"issued_on"`
	ExpiresOn        string `db:"expires_on" json:"expires_on"`
}

// FullName joins the four name parts.
func (i *Identity) FullName() string {
	name := i.FirstName
	for _, p := range []string{i.SecondName, i.PaternalSurname, i.MaternalSurname} {
		if p != "" {
			name += " " + p
		}
	}
	return name
}
