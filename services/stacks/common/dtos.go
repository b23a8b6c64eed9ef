package common

import (
	"encoding/json"
	"time"
)

// AllComponentsShort is the sentinel short id addressing the upstream aggregate over all components. It is a
// valid query target but is filtered out of listings meant for stack composition.
const AllComponentsShort = "all"

// Component describes a tracked open-source project scraped from the devstats listing page
type Component struct {
	Short string `json:"short"`
	Name  string `json:"name"`
	Href  string `json:"href"`
	SVG   string `json:"svg,omitempty"`
}

// Stack is a named, ordered collection of component short ids grouped for combined reporting
type Stack struct {
	Short      string   `json:"short"`
	Name       string   `json:"name"`
	Components []string `json:"components"`
}

// ResolvedStack mirrors Stack with the member short ids resolved to full directory entries
type ResolvedStack struct {
	Short      string      `json:"short"`
	Name       string      `json:"name"`
	Components []Component `json:"components"`
}

// CacheRow is one (company, period) change emitted by the metrics cache towards the durable mirror
type CacheRow struct {
	Component string
	Metric    string
	Company   string
	Period    string
	Value     float64
}

// TableRow holds the per-period values of a single entity (company) in a wide-form table
type TableRow struct {
	Name      string
	UpdatedAt time.Time
	Values    map[string]float64
}

// MarshalJSON flattens the row into a single JSON object: {"name": ..., "updatedAt": ..., "<period>": value, ...}
func (row TableRow) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(row.Values)+2)
	for period, value := range row.Values {
		out[period] = value
	}
	out["name"] = row.Name
	if !row.UpdatedAt.IsZero() {
		out["updatedAt"] = row.UpdatedAt
	}

	return json.Marshal(out)
}

// TabularResult is the wide-form table shared by the devstats client, the metrics cache and the aggregator.
// The first column is always the entity name, the rest are period identifiers.
type TabularResult struct {
	Columns []string   `json:"columns"`
	Rows    []TableRow `json:"rows"`
}
