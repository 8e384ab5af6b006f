package repositories

import (
	"database/sql"
)

// Repositories struct holds all repository interfaces
type Repositories struct {
	Processo  ProcessoRepository
	Reference ReferenceRepository
	User      UserRepository
	Audit     AuditRepository
}

// NewRepositories creates and initializes all repositories
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Processo:  NewProcessoRepository(db),
		Reference: NewReferenceRepository(db),
		User:      NewUserRepository(db),
		Audit:     NewAuditRepository(db),
	}
}
