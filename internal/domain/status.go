package domain

import (
	"fmt"
	"strings"
)

type StatusField string

const (
	FieldVitals      StatusField = "vitals"
	FieldGold        StatusField = "gold"
	FieldLocation    StatusField = "location"
	FieldExits       StatusField = "exits"
	FieldEnvironment StatusField = "environment"
	FieldTravel      StatusField = "travel"
	FieldRest        StatusField = "rest"
	FieldEncumbrance StatusField = "encumbrance"
	FieldInventory   StatusField = "inventory"
)

type Vitals struct {
	HP int
	EP int
}

func (v Vitals) String() string {
	return fmt.Sprintf("HP %d EP %d", v.HP, v.EP)
}

// StatusSnapshot holds the structured facts observed so far. Nil means the
// field has not been seen in this session.
type StatusSnapshot struct {
	Vitals      *Vitals
	Gold        *int
	Location    string
	Exits       string
	Environment string
	Travel      string
	Rest        string
	Encumbrance string
	Inventory   string
}

func (s StatusSnapshot) Empty() bool {
	return s.Vitals == nil && s.Gold == nil && s.Location == "" && s.Exits == "" &&
		s.Environment == "" && s.Travel == "" && s.Rest == "" && s.Encumbrance == "" && s.Inventory == ""
}

// Summary renders the known fields one per line, in a fixed order.
func (s StatusSnapshot) Summary() string {
	lines := make([]string, 0, 9)
	if s.Vitals != nil {
		lines = append(lines, "vitals: "+s.Vitals.String())
	}
	if s.Gold != nil {
		lines = append(lines, fmt.Sprintf("gold: %d", *s.Gold))
	}
	for _, kv := range []struct {
		key   StatusField
		value string
	}{
		{FieldLocation, s.Location},
		{FieldExits, s.Exits},
		{FieldEnvironment, s.Environment},
		{FieldTravel, s.Travel},
		{FieldRest, s.Rest},
		{FieldEncumbrance, s.Encumbrance},
		{FieldInventory, s.Inventory},
	} {
		if kv.value != "" {
			lines = append(lines, string(kv.key)+": "+kv.value)
		}
	}

	return strings.Join(lines, "\n")
}
