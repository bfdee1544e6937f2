package domain

// Classification is the result of mapping a free-text issue description to a
// category tree and priority.
type Classification struct {
	Category    string
	Subcategory string
	Priority    TicketPriority
	Confidence  float64
	Reasoning   string
}

// categorySkills maps category/subcategory pairs to the capability tags a
// provider should hold to service them.
var categorySkills = map[string][]string{
	"Facilities_Cold Storage":     {"Refrigeration", "HVAC"},
	"Facilities_Electrical":       {"Electrical"},
	"Facilities_Plumbing":         {"Plumbing"},
	"Facilities_HVAC":             {"HVAC"},
	"IT_POS Systems":              {"POS Systems", "IT Support"},
	"IT_Network":                  {"Network", "IT Support"},
	"IT_Computers":                {"IT Support", "Computer Repair"},
	"Equipment_Shopping Carts":    {"General Maintenance"},
	"Equipment_Shelving":          {"General Maintenance"},
	"Equipment_General Equipment": {"General Maintenance"},
	"General_Maintenance":         {"General Maintenance"},
}

// RequiredSkills returns the capability tags for a classification, defaulting
// to general maintenance for unknown category pairs.
func RequiredSkills(category, subcategory string) []string {
	if skills, ok := categorySkills[category+"_"+subcategory]; ok {
		return append([]string(nil), skills...)
	}
	return []string{"General Maintenance"}
}
