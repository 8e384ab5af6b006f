package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/blogem/licitacoes/models"
)

// ProcessoRepository interface defines bidding process database operations
type ProcessoRepository interface {
	GetAll(ctx context.Context) ([]models.Processo, error)
	GetByID(ctx context.Context, id int64) (*models.Processo, error)
	Create(ctx context.Context, p *models.Processo) error
	Update(ctx context.Context, p *models.Processo) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// processoRepository implements ProcessoRepository interface
type processoRepository struct {
	db *sql.DB
}

// NewProcessoRepository creates a new process repository
func NewProcessoRepository(db *sql.DB) ProcessoRepository {
	return &processoRepository{db: db}
}

const processoColumns = `
	id, numero_processo, objeto, unidade_gestora_id, responsavel_id,
	modalidade_id, situacao_id, data_abertura, valor_estimado,
	valor_homologado, observacoes, created_at, updated_at`

// GetAll retrieves all processes
func (r *processoRepository) GetAll(ctx context.Context) ([]models.Processo, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+processoColumns+` FROM processos ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query processes: %w", err)
	}
	defer rows.Close()

	processos := []models.Processo{}
	for rows.Next() {
		p, err := scanProcesso(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan process: %w", err)
		}
		processos = append(processos, *p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating processes: %w", err)
	}

	return processos, nil
}

// GetByID retrieves a process by ID
func (r *processoRepository) GetByID(ctx context.Context, id int64) (*models.Processo, error) {
	p, err := scanProcesso(r.db.QueryRowContext(ctx, `SELECT `+processoColumns+` FROM processos WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("process with ID %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get process: %w", err)
	}
	return p, nil
}

// Create creates a new process and sets its ID and timestamps
func (r *processoRepository) Create(ctx context.Context, p *models.Processo) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO processos (
			numero_processo, objeto, unidade_gestora_id, responsavel_id,
			modalidade_id, situacao_id, data_abertura, valor_estimado,
			valor_homologado, observacoes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		p.NumeroProcesso,
		p.Objeto,
		p.UnidadeGestoraID,
		p.ResponsavelID,
		p.ModalidadeID,
		p.SituacaoID,
		dateArg(p.DataAbertura),
		p.ValorEstimado,
		p.ValorHomologado,
		p.Observacoes,
		models.FormatTimestamp(p.CreatedAt),
		models.FormatTimestamp(p.UpdatedAt),
	)
	if err != nil {
		return execError(err, "failed to create process")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	p.ID = id
	return nil
}

// Update updates an existing process
func (r *processoRepository) Update(ctx context.Context, p *models.Processo) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE processos
		SET numero_processo = ?, objeto = ?, unidade_gestora_id = ?, responsavel_id = ?,
		    modalidade_id = ?, situacao_id = ?, data_abertura = ?, valor_estimado = ?,
		    valor_homologado = ?, observacoes = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		p.NumeroProcesso,
		p.Objeto,
		p.UnidadeGestoraID,
		p.ResponsavelID,
		p.ModalidadeID,
		p.SituacaoID,
		dateArg(p.DataAbertura),
		p.ValorEstimado,
		p.ValorHomologado,
		p.Observacoes,
		models.FormatTimestamp(p.UpdatedAt),
		p.ID,
	)
	if err != nil {
		return execError(err, "failed to update process")
	}
	return checkAffected(result, fmt.Sprintf("process with ID %d", p.ID))
}

// Delete deletes a process
func (r *processoRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM processos WHERE id = ?`, id)
	if err != nil {
		return execError(err, "failed to delete process")
	}
	return checkAffected(result, fmt.Sprintf("process with ID %d", id))
}

// Count returns the total number of processes
func (r *processoRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processos`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count processes: %w", err)
	}
	return count, nil
}

func scanProcesso(row rowScanner) (*models.Processo, error) {
	var p models.Processo
	var unidade, responsavel, modalidade, situacao sql.NullInt64
	var dataAbertura sql.NullString
	var estimado, homologado sql.NullFloat64
	var createdAt, updatedAt string

	err := row.Scan(
		&p.ID,
		&p.NumeroProcesso,
		&p.Objeto,
		&unidade,
		&responsavel,
		&modalidade,
		&situacao,
		&dataAbertura,
		&estimado,
		&homologado,
		&p.Observacoes,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Convert NULL values to nil
	p.UnidadeGestoraID = nullInt(unidade)
	p.ResponsavelID = nullInt(responsavel)
	p.ModalidadeID = nullInt(modalidade)
	p.SituacaoID = nullInt(situacao)
	if estimado.Valid {
		p.ValorEstimado = &estimado.Float64
	}
	if homologado.Valid {
		p.ValorHomologado = &homologado.Float64
	}
	if dataAbertura.Valid && dataAbertura.String != "" {
		d, err := models.ParseDate(dataAbertura.String)
		if err != nil {
			return nil, fmt.Errorf("invalid data_abertura %q: %w", dataAbertura.String, err)
		}
		p.DataAbertura = &d
	}

	if p.CreatedAt, err = models.ParseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if p.UpdatedAt, err = models.ParseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAt, err)
	}

	return &p, nil
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func dateArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return models.FormatDate(*t)
}
