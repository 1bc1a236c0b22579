// Package legislation defines the records served by the legislation API.
package legislation

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/legis-client/pkg/pagination"
)

// Type is the legislation category, which is also the API collection name.
type Type string

const (
	TypeFederal   Type = "federal"
	TypeState     Type = "state"
	TypeExecutive Type = "executive"
)

// Types lists every Type in dashboard tab order.
var Types = []Type{TypeFederal, TypeState, TypeExecutive}

// ParseType parses a type name, case-insensitively.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown legislation type %q (want federal, state or executive)", s)
	}
	return t, nil
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeFederal, TypeState, TypeExecutive:
		return true
	}
	return false
}

// Label is the human-readable tab label.
func (t Type) Label() string {
	switch t {
	case TypeFederal:
		return "Federal"
	case TypeState:
		return "State"
	case TypeExecutive:
		return "Executive Orders"
	}
	return string(t)
}

// Status is the lifecycle state of a record. Unknown values decode as-is.
type Status string

const (
	StatusActive  Status = "active"
	StatusPending Status = "pending"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSigned  Status = "signed"
	StatusVetoed  Status = "vetoed"

	StatusIntroduced   Status = "introduced"
	StatusInCommittee  Status = "in_committee"
	StatusPassedHouse  Status = "passed_house"
	StatusPassedSenate Status = "passed_senate"
	StatusEnacted      Status = "enacted"
)

var knownStatuses = map[Status]bool{
	StatusActive: true, StatusPending: true, StatusPassed: true,
	StatusFailed: true, StatusSigned: true, StatusVetoed: true,
	StatusIntroduced: true, StatusInCommittee: true, StatusPassedHouse: true,
	StatusPassedSenate: true, StatusEnacted: true,
}

// Known reports whether s is one of the statuses the API documents.
func (s Status) Known() bool {
	return knownStatuses[s]
}

// Legislation is one bill or executive order.
type Legislation struct {
	ID             string         `json:"id"`
	Type           Type           `json:"type"`
	Title          string         `json:"title"`
	Summary        string         `json:"summary,omitempty"`
	Status         Status         `json:"status,omitempty"`
	IntroducedDate string         `json:"introduced_date,omitempty"`
	LastActionDate string         `json:"last_action_date,omitempty"`
	SourceURL      string         `json:"source_url,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Actions        []Action       `json:"actions,omitempty"`
}

// Action is one recorded step in a bill's history.
type Action struct {
	ActionDate  string `json:"action_date"`
	ActionType  string `json:"action_type"`
	Description string `json:"description,omitempty"`
	Chamber     string `json:"chamber,omitempty"`
	Result      string `json:"result,omitempty"`
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// TotalPages returns ceil(Total / Limit), at least 1.
func (p *Page[T]) TotalPages() int {
	return pagination.TotalPages(p.Total, p.Limit)
}

// Meta returns the pagination metadata of the page.
func (p *Page[T]) Meta() pagination.Meta {
	return pagination.NewMeta(p.Page, p.Limit, p.Total)
}

// Stats are the overview counts per type.
type Stats struct {
	FederalCount         int `json:"federal_count"`
	StateCount           int `json:"state_count"`
	ExecutiveOrdersCount int `json:"executive_orders_count"`
}

// Count returns the count for t.
func (s Stats) Count(t Type) int {
	switch t {
	case TypeFederal:
		return s.FederalCount
	case TypeState:
		return s.StateCount
	case TypeExecutive:
		return s.ExecutiveOrdersCount
	}
	return 0
}

// Set stores the count for t.
func (s *Stats) Set(t Type, n int) {
	switch t {
	case TypeFederal:
		s.FederalCount = n
	case TypeState:
		s.StateCount = n
	case TypeExecutive:
		s.ExecutiveOrdersCount = n
	}
}
