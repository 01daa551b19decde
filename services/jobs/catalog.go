package jobs

// Catalog is the state -> district -> court complexes offered by the job
// form. It only drives the form, lookups accept any names.
type Catalog map[string]map[string][]string

var DefaultCatalog = Catalog{
	"Delhi": {
		"New Delhi":  {"Tis Hazari", "Patiala House", "Rouse Avenue"},
		"South East": {"Saket Courts"},
		"Central":    {"Karkardooma"},
	},
	"Maharashtra": {
		"Mumbai": {"Fort", "Dindoshi"},
		"Pune":   {"Shivajinagar"},
	},
	"Karnataka": {
		"Bengaluru": {"City Civil Court", "Mayo Hall"},
		"Mysuru":    {"Mysuru Court Complex"},
	},
}
