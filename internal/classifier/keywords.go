package classifier

import (
	"strings"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

type keywordRule struct {
	keywords    []string
	category    string
	subcategory string
	priority    domain.TicketPriority
	confidence  float64
	reasoning   string
}

// Rules are matched in order; the first hit wins.
var keywordRules = []keywordRule{
	{
		keywords:    []string{"freezer", "refrigerator", "cooling"},
		category:    "Facilities",
		subcategory: "Cold Storage",
		priority:    domain.TicketPriorityHigh,
		confidence:  0.85,
		reasoning:   "Freezer/refrigeration issues pose product spoilage risk",
	},
	{
		keywords:    []string{"electrical", "light", "power"},
		category:    "Facilities",
		subcategory: "Electrical",
		priority:    domain.TicketPriorityMedium,
		confidence:  0.80,
		reasoning:   "Electrical issues may affect store operations",
	},
	{
		keywords:    []string{"pos", "checkout", "terminal"},
		category:    "IT",
		subcategory: "POS Systems",
		priority:    domain.TicketPriorityHigh,
		confidence:  0.90,
		reasoning:   "POS system issues directly impact customer transactions",
	},
	{
		keywords:    []string{"network", "wifi", "internet"},
		category:    "IT",
		subcategory: "Network",
		priority:    domain.TicketPriorityMedium,
		confidence:  0.75,
		reasoning:   "Network issues affect multiple systems",
	},
	{
		keywords:    []string{"cart", "shelf", "equipment"},
		category:    "Equipment",
		subcategory: "General Equipment",
		priority:    domain.TicketPriorityLow,
		confidence:  0.70,
		reasoning:   "General equipment maintenance issue",
	},
}

// ClassifyByKeywords deterministically classifies a description using the
// ordered keyword table, defaulting to General/Maintenance. It is total and
// never fails, so the orchestrator can always proceed.
func ClassifyByKeywords(description string) domain.Classification {
	lower := strings.ToLower(description)
	for _, rule := range keywordRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return domain.Classification{
					Category:    rule.category,
					Subcategory: rule.subcategory,
					Priority:    rule.priority,
					Confidence:  rule.confidence,
					Reasoning:   rule.reasoning,
				}
			}
		}
	}
	return domain.Classification{
		Category:    "General",
		Subcategory: "Maintenance",
		Priority:    domain.TicketPriorityMedium,
		Confidence:  0.60,
		Reasoning:   "General maintenance issue requiring assessment",
	}
}
