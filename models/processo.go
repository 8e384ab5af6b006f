package models

import (
	"time"
)

// Processo is a bidding process (licitação)
type Processo struct {
	ID               int64      `json:"id" db:"id"`
	NumeroProcesso   string     `json:"numero_processo" db:"numero_processo"`
	Objeto           string     `json:"objeto" db:"objeto"`
	UnidadeGestoraID *int64     `json:"unidade_gestora_id,omitempty" db:"unidade_gestora_id"`
	ResponsavelID    *int64     `json:"responsavel_id,omitempty" db:"responsavel_id"`
	ModalidadeID     *int64     `json:"modalidade_id,omitempty" db:"modalidade_id"`
	SituacaoID       *int64     `json:"situacao_id,omitempty" db:"situacao_id"`
	DataAbertura     *time.Time `json:"data_abertura,omitempty" db:"data_abertura"`
	ValorEstimado    *float64   `json:"valor_estimado,omitempty" db:"valor_estimado"`
	ValorHomologado  *float64   `json:"valor_homologado,omitempty" db:"valor_homologado"`
	Observacoes      string     `json:"observacoes,omitempty" db:"observacoes"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// Snapshot captures the row as it is stored, for the audit log
func (p *Processo) Snapshot() *Snapshot {
	s := NewSnapshot().
		Set("id", Int(p.ID)).
		Set("numero_processo", String(p.NumeroProcesso)).
		Set("objeto", String(p.Objeto)).
		Set("unidade_gestora_id", optionalInt(p.UnidadeGestoraID)).
		Set("responsavel_id", optionalInt(p.ResponsavelID)).
		Set("modalidade_id", optionalInt(p.ModalidadeID)).
		Set("situacao_id", optionalInt(p.SituacaoID))

	if p.DataAbertura != nil {
		s.Set("data_abertura", String(FormatDate(*p.DataAbertura)))
	} else {
		s.Set("data_abertura", Null())
	}

	return s.
		Set("valor_estimado", optionalFloat(p.ValorEstimado)).
		Set("valor_homologado", optionalFloat(p.ValorHomologado)).
		Set("observacoes", String(p.Observacoes)).
		Set("updated_at", String(FormatTimestamp(p.UpdatedAt)))
}

func optionalInt(v *int64) Value {
	if v == nil {
		return Null()
	}
	return Int(*v)
}

func optionalFloat(v *float64) Value {
	if v == nil {
		return Null()
	}
	return Number(*v)
}

// ProcessoForm represents the payload for creating/updating a process
type ProcessoForm struct {
	NumeroProcesso   string   `json:"numero_processo"`
	Objeto           string   `json:"objeto"`
	UnidadeGestoraID *int64   `json:"unidade_gestora_id"`
	ResponsavelID    *int64   `json:"responsavel_id"`
	ModalidadeID     *int64   `json:"modalidade_id"`
	SituacaoID       *int64   `json:"situacao_id"`
	DataAbertura     string   `json:"data_abertura"`
	ValorEstimado    *float64 `json:"valor_estimado"`
	ValorHomologado  *float64 `json:"valor_homologado"`
	Observacoes      string   `json:"observacoes"`
}

// Validate validates the process form data
func (f *ProcessoForm) Validate() ValidationErrors {
	var errs ValidationErrors

	if f.NumeroProcesso == "" {
		errs = append(errs, ValidationError{Field: "numero_processo", Message: "Process number is required"})
	}

	if len(f.NumeroProcesso) > 50 {
		errs = append(errs, ValidationError{Field: "numero_processo", Message: "Process number must be less than 50 characters"})
	}

	if f.Objeto == "" {
		errs = append(errs, ValidationError{Field: "objeto", Message: "Object is required"})
	}

	if f.DataAbertura != "" {
		if _, err := ParseDate(f.DataAbertura); err != nil {
			errs = append(errs, ValidationError{Field: "data_abertura", Message: "Opening date must be YYYY-MM-DD"})
		}
	}

	if f.ValorEstimado != nil && *f.ValorEstimado < 0 {
		errs = append(errs, ValidationError{Field: "valor_estimado", Message: "Estimated value must not be negative"})
	}

	if f.ValorHomologado != nil && *f.ValorHomologado < 0 {
		errs = append(errs, ValidationError{Field: "valor_homologado", Message: "Awarded value must not be negative"})
	}

	return errs
}

// Apply copies the form into the process. The form must be valid.
func (f *ProcessoForm) Apply(p *Processo) {
	p.NumeroProcesso = f.NumeroProcesso
	p.Objeto = f.Objeto
	p.UnidadeGestoraID = f.UnidadeGestoraID
	p.ResponsavelID = f.ResponsavelID
	p.ModalidadeID = f.ModalidadeID
	p.SituacaoID = f.SituacaoID
	p.ValorEstimado = f.ValorEstimado
	p.ValorHomologado = f.ValorHomologado
	p.Observacoes = f.Observacoes
	p.DataAbertura = nil
	if f.DataAbertura != "" {
		if d, err := ParseDate(f.DataAbertura); err == nil {
			p.DataAbertura = &d
		}
	}
}
