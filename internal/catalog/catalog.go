// Package catalog holds the closed value lists the registries validate against.
//
// Defaults reproduce the server's historical lists. Each list can be replaced
// per deployment through environment variables; an empty list disables the
// check for that attribute.
package catalog

import (
	"fmt"
	"slices"
	"sort"

	"github.com/caarlos0/env/v11"
)

// Catalog is immutable once built and safe to share between goroutines.
type Catalog struct {
	VehicleCategories  []string `env:"REGISTRY_VEHICLE_CATEGORIES" envSeparator:","`
	VehicleColors      []string `env:"REGISTRY_VEHICLE_COLORS" envSeparator:","`
	InspectionStatuses []string `env:"REGISTRY_INSPECTION_STATUSES" envSeparator:","`
	PermitStatuses     []string `env:"REGISTRY_PERMIT_STATUSES" envSeparator:","`
	PropertyZones      []string `env:"REGISTRY_PROPERTY_ZONES" envSeparator:","`
	PropertyColors     []string `env:"REGISTRY_PROPERTY_COLORS" envSeparator:","`
	// LicenseClasses maps class code to its printed label.
	LicenseClasses map[string]string `env:"REGISTRY_LICENSE_CLASSES" envSeparator:";" envKeyValSeparator:"="`
}

// LicenseClass is one entry of the license catalog.
type LicenseClass struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

var colors = []string{
	"Negro", "Blanco", "Gris", "Plata", "Rojo", "Azul", "Verde", "Amarillo",
	"Naranja", "Marrón", "Beige", "Dorado", "Morado", "Rosa", "Turquesa", "Burdeos",
}

// Default returns the built-in lists.
func Default() *Catalog {
	return &Catalog{
		VehicleCategories: []string{
			"Baja", "Media", "Alta", "Premium", "Lujo", "Deportivo", "Superdeportivo",
			"Clásico", "Colección", "Utilitario", "Trabajo", "Militar", "Policial", "Emergencia",
		},
		VehicleColors:      slices.Clone(colors),
		InspectionStatuses: []string{"Aprobada", "Rechazada", "Pendiente", "Vencida", "No Aplicable"},
		PermitStatuses:     []string{"Vigente", "Vencido", "En Trámite", "Suspendido", "Revocado"},
		PropertyZones:      []string{"Quilicura", "La Granja", "Las Condes", "Pudahuel"},
		PropertyColors:     slices.Clone(colors),
		LicenseClasses: map[string]string{
			"B":  "Clase B - Vehículos particulares",
			"C":  "Clase C - Motocicletas",
			"D":  "Clase D - Transporte público",
			"E":  "Clase E - Vehículos de carga",
			"F":  "Clase F - Vehículos especiales",
			"A1": "Clase A1 - Maquinaria agrícola",
			"A2": "Clase A2 - Maquinaria industrial",
			"A3": "Clase A3 - Vehículos de emergencia",
			"A4": "Clase A4 - Vehículos militares",
			"A5": "Clase A5 - Vehículos especiales pesados",
			"A6": "Clase Armas - Portación de armas Bajo calibre Legalmente",
		},
	}
}

// FromEnv starts from Default and replaces any list set in the environment.
func FromEnv() (*Catalog, error) {
	c := Default()
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse catalog env: %w", err)
	}
	return c, nil
}

// Allowed reports whether v is in list. An empty list allows everything.
func Allowed(list []string, v string) bool {
	return len(list) == 0 || slices.Contains(list, v)
}

// LicenseLabel returns the label of class code.
func (c *Catalog) LicenseLabel(code string) (string, bool) {
	label, ok := c.LicenseClasses[code]
	return label, ok
}

// Licenses lists the license catalog ordered by code.
func (c *Catalog) Licenses() []LicenseClass {
	out := make([]LicenseClass, 0, len(c.LicenseClasses))
	for code, label := range c.LicenseClasses {
		out = append(out, LicenseClass{Code: code, Label: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
