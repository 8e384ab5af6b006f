package models

import (
	"fmt"
	"time"
)

// ReferenceKind identifies one of the lookup tables foreign keys point at
type ReferenceKind string

const (
	ReferenceStatus       ReferenceKind = "status"
	ReferenceModality     ReferenceKind = "modality"
	ReferenceResponsible  ReferenceKind = "responsible"
	ReferenceManagingUnit ReferenceKind = "managing-unit"
)

// ReferenceKinds lists every kind in a stable order
var ReferenceKinds = []ReferenceKind{
	ReferenceStatus,
	ReferenceModality,
	ReferenceResponsible,
	ReferenceManagingUnit,
}

var referenceTables = map[ReferenceKind]AffectedTable{
	ReferenceStatus:       TableSituacoes,
	ReferenceModality:     TableModalidades,
	ReferenceResponsible:  TableResponsaveis,
	ReferenceManagingUnit: TableUnidadesGestoras,
}

// Table returns the business table backing the kind
func (k ReferenceKind) Table() AffectedTable {
	return referenceTables[k]
}

// Valid reports whether the kind is known
func (k ReferenceKind) Valid() bool {
	_, ok := referenceTables[k]
	return ok
}

// ParseReferenceKind accepts either the kind name or its table name
func ParseReferenceKind(s string) (ReferenceKind, error) {
	if k := ReferenceKind(s); k.Valid() {
		return k, nil
	}
	for k, t := range referenceTables {
		if string(t) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown reference kind %q", s)
}

// ReferenceItem is one row of a lookup table
type ReferenceItem struct {
	ID        int64     `json:"id"`
	Name      string    `json:"nome"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot captures the row for the audit log
func (r *ReferenceItem) Snapshot() *Snapshot {
	return NewSnapshot().
		Set("id", Int(r.ID)).
		Set("nome", String(r.Name)).
		Set("updated_at", String(FormatTimestamp(r.UpdatedAt)))
}

// ReferenceSet is a point-in-time copy of all lookup tables, loaded once
// per query batch and handed to the resolver
type ReferenceSet struct {
	labels map[ReferenceKind]map[int64]string
}

// NewReferenceSet creates an empty set
func NewReferenceSet() *ReferenceSet {
	return &ReferenceSet{labels: make(map[ReferenceKind]map[int64]string)}
}

// Add registers a label for kind/id
func (s *ReferenceSet) Add(kind ReferenceKind, id int64, label string) {
	m, ok := s.labels[kind]
	if !ok {
		m = make(map[int64]string)
		s.labels[kind] = m
	}
	m[id] = label
}

// Lookup returns the label for kind/id
func (s *ReferenceSet) Lookup(kind ReferenceKind, id int64) (string, bool) {
	if s == nil {
		return "", false
	}
	label, ok := s.labels[kind][id]
	return label, ok
}

// Len returns the number of labels across all kinds
func (s *ReferenceSet) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, m := range s.labels {
		n += len(m)
	}
	return n
}

// ReferenceForm is the payload for creating or renaming a lookup row
type ReferenceForm struct {
	Name string `json:"nome"`
}

// Validate validates the reference form
func (f *ReferenceForm) Validate() ValidationErrors {
	var errs ValidationErrors
	if f.Name == "" {
		errs = append(errs, ValidationError{Field: "nome", Message: "Name is required"})
	}
	if len(f.Name) > 200 {
		errs = append(errs, ValidationError{Field: "nome", Message: "Name must be less than 200 characters"})
	}
	return errs
}
