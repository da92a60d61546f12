package entity

import "strings"

// Emergency is a logged alert. NotifiedServices is a comma separated list.
type Emergency struct {
	ID               string `db:"id" json:"id"`
	CitizenKey       string `db:"citizen_key" json:"citizen_key"`
	Reason           string `db:"reason" json:"reason"`
	Service          string `db:"service" json:"service"`
	Location         string `db:"location" json:"location"`
	ReportedAt       string `db:"reported_at" json:"reported_at"`
	NotifiedServices string `db:"notified_services" json:"notified_services"`
}

func (e *Emergency) Notified() []string {
	if e.NotifiedServices == "" {
		return nil
	}
	return strings.Split(e.NotifiedServices, ", ")
}
