package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Operation is the kind of mutation an audit entry describes
type Operation string

const (
	OperationInsert Operation = "INSERT"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// Valid reports whether the operation is one of INSERT, UPDATE or DELETE
func (o Operation) Valid() bool {
	switch o {
	case OperationInsert, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// ParseOperation parses an operation name case-insensitively
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToUpper(strings.TrimSpace(s)))
	if !op.Valid() {
		return "", fmt.Errorf("unknown operation %q", s)
	}
	return op, nil
}

// AffectedTable names a tracked business table
type AffectedTable string

const (
	TableProcessos        AffectedTable = "processos"
	TableSituacoes        AffectedTable = "situacoes"
	TableModalidades      AffectedTable = "modalidades"
	TableResponsaveis     AffectedTable = "responsaveis"
	TableUnidadesGestoras AffectedTable = "unidades_gestoras"
	TableUsers            AffectedTable = "users"
)

var trackedTables = map[AffectedTable]bool{
	TableProcessos:        true,
	TableSituacoes:        true,
	TableModalidades:      true,
	TableResponsaveis:     true,
	TableUnidadesGestoras: true,
	TableUsers:            true,
}

// Valid reports whether the table is part of the tracked set
func (t AffectedTable) Valid() bool {
	return trackedTables[t]
}

// TrackedTables returns the tracked table names in alphabetical order
func TrackedTables() []AffectedTable {
	tables := make([]AffectedTable, 0, len(trackedTables))
	for t := range trackedTables {
		tables = append(tables, t)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i] < tables[j] })
	return tables
}

// Actor identifies who performed a mutation. All fields are snapshotted at
// write time; an empty ID means a system or anonymous action.
type Actor struct {
	ID          string `json:"id,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// Label returns the best human-readable name for the actor
func (a Actor) Label() string {
	switch {
	case a.DisplayName != "":
		return a.DisplayName
	case a.Email != "":
		return a.Email
	case a.ID != "":
		return a.ID
	default:
		return "System"
	}
}

// AuditEvent is a mutation reported by a business handler, before persistence
type AuditEvent struct {
	Actor     Actor
	Table     AffectedTable
	Operation Operation
	RecordID  *int64
	Before    *Snapshot
	After     *Snapshot
	SourceIP  string
	UserAgent string
	RequestID string
}

// Validate checks the event against the snapshot presence rules:
// INSERT has only an after snapshot, DELETE only a before snapshot and
// UPDATE both.
func (e *AuditEvent) Validate() error {
	var errs ValidationErrors

	if !e.Table.Valid() {
		errs = append(errs, ValidationError{Field: "table", Message: fmt.Sprintf("unknown table %q", e.Table)})
	}

	switch e.Operation {
	case OperationInsert:
		if e.Before != nil {
			errs = append(errs, ValidationError{Field: "before", Message: "INSERT must not carry a before snapshot"})
		}
		if e.After == nil {
			errs = append(errs, ValidationError{Field: "after", Message: "INSERT requires an after snapshot"})
		}
	case OperationDelete:
		if e.Before == nil {
			errs = append(errs, ValidationError{Field: "before", Message: "DELETE requires a before snapshot"})
		}
		if e.After != nil {
			errs = append(errs, ValidationError{Field: "after", Message: "DELETE must not carry an after snapshot"})
		}
	case OperationUpdate:
		if e.Before == nil || e.After == nil {
			errs = append(errs, ValidationError{Field: "before", Message: "UPDATE requires both snapshots"})
		}
	default:
		errs = append(errs, ValidationError{Field: "operation", Message: fmt.Sprintf("unknown operation %q", e.Operation)})
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// AuditLogEntry is an immutable, persisted audit record
type AuditLogEntry struct {
	ID        int64         `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Actor     Actor         `json:"actor"`
	Table     AffectedTable `json:"table"`
	Operation Operation     `json:"operation"`
	RecordID  *int64        `json:"record_id,omitempty"`
	Before    *Snapshot     `json:"before,omitempty"`
	After     *Snapshot     `json:"after,omitempty"`
	SourceIP  string        `json:"source_ip,omitempty"`
	UserAgent string        `json:"user_agent,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// AuditFilter holds the independently optional, conjunctive list filters
type AuditFilter struct {
	ActorID   string
	Table     AffectedTable
	Operation Operation
	RecordID  *int64
	Start     *time.Time
	End       *time.Time
}

// Validate rejects inconsistent filters
func (f AuditFilter) Validate() error {
	var errs ValidationErrors

	if f.Table != "" && !f.Table.Valid() {
		errs = append(errs, ValidationError{Field: "table", Message: fmt.Sprintf("unknown table %q", f.Table)})
	}
	if f.Operation != "" && !f.Operation.Valid() {
		errs = append(errs, ValidationError{Field: "operation", Message: fmt.Sprintf("unknown operation %q", f.Operation)})
	}
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		errs = append(errs, ValidationError{Field: "end", Message: "end must not be before start"})
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Matches reports whether an entry falls inside the filter
func (f AuditFilter) Matches(e *AuditLogEntry) bool {
	if f.ActorID != "" && e.Actor.ID != f.ActorID {
		return false
	}
	if f.Table != "" && e.Table != f.Table {
		return false
	}
	if f.Operation != "" && e.Operation != f.Operation {
		return false
	}
	if f.RecordID != nil && (e.RecordID == nil || *e.RecordID != *f.RecordID) {
		return false
	}
	if f.Start != nil && e.Timestamp.Before(*f.Start) {
		return false
	}
	if f.End != nil && e.Timestamp.After(*f.End) {
		return false
	}
	return true
}

// Page is a 1-indexed pagination request
type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// NewPage clamps page number and size into their allowed ranges
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// Offset returns the row offset of the page
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// ActorCount is one row of the top actors ranking
type ActorCount struct {
	Actor Actor `json:"actor"`
	Count int64 `json:"count"`
}

// DayCount is the number of entries created on one calendar day (UTC)
type DayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// AuditStats aggregates entries inside one filtered window
type AuditStats struct {
	Total       int64                   `json:"total"`
	ByOperation map[Operation]int64     `json:"by_operation"`
	ByTable     map[AffectedTable]int64 `json:"by_table"`
	TopActors   []ActorCount            `json:"top_actors"`
	ByDay       []DayCount              `json:"by_day"`
}
