package changeset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogem/licitacoes/models"
)

func testResolver() *Resolver {
	refs := models.NewReferenceSet()
	refs.Add(models.ReferenceStatus, 3, "Em andamento")
	refs.Add(models.ReferenceStatus, 5, "Homologado")
	refs.Add(models.ReferenceModality, 1, "Pregão Eletrônico")
	return NewResolver(refs, nil)
}

func processo(status int64, objeto string) *models.Snapshot {
	return models.NewSnapshot().
		Set("id", models.Int(42)).
		Set("numero_processo", models.String("001/2024")).
		Set("objeto", models.String(objeto)).
		Set("situacao_id", models.Int(status)).
		Set("observacoes", models.Null()).
		Set("updated_at", models.String("2024-05-10T12:00:00.000000000Z"))
}

func TestDiff_Identity(t *testing.T) {
	d := NewDiffer(nil)
	s := processo(3, "Obra")

	result := d.Diff(s, s, testResolver())

	assert.True(t, result.Empty())
	assert.Equal(t, "", result.Summary())
	assert.Len(t, result.Before, 5, "updated_at is never rendered")
}

func TestDiff_Symmetry(t *testing.T) {
	d := NewDiffer(nil)
	a := processo(3, "Obra")
	b := processo(5, "Obra nova").Set("valor_estimado", models.Number(1500.5))

	forward := d.Diff(a, b, testResolver())
	backward := d.Diff(b, a, testResolver())

	assert.ElementsMatch(t, forward.Changed, backward.Changed)
	assert.Equal(t, []string{"objeto", "valor_estimado", "situacao_nome"}, forward.Changed)
}

func TestDiff_ForeignKeyRendersLabels(t *testing.T) {
	d := NewDiffer(nil)

	result := d.Diff(processo(3, "Obra"), processo(5, "Obra"), testResolver())

	require.Equal(t, []string{"situacao_nome"}, result.Changed)
	assert.Equal(t, "situacao_nome: Em andamento -> Homologado", result.Summary())
	assert.False(t, result.IsChanged("situacao_id"))
}

func TestDiff_UnresolvedForeignKey(t *testing.T) {
	d := NewDiffer(nil)

	result := d.Diff(processo(3, "Obra"), processo(99, "Obra"), testResolver())

	assert.Equal(t, "situacao_nome: Em andamento -> Unknown (id: 99)", result.Summary())

	same := d.Diff(processo(98, "Obra"), processo(98, "Obra"), testResolver())
	assert.True(t, same.Empty(), "equal ids are unchanged even when neither resolves")
}

func TestDiff_StoredLabelIsOverridden(t *testing.T) {
	d := NewDiffer(nil)
	before := processo(3, "Obra").Set("situacao_nome", models.String("stale label"))
	after := processo(3, "Obra").Set("situacao_nome", models.String("another stale label"))

	result := d.Diff(before, after, testResolver())

	assert.True(t, result.Empty())
	for _, f := range result.After {
		if f.Name == "situacao_nome" {
			assert.Equal(t, "Em andamento", f.Value.Display())
		}
	}
}

func TestDiff_OptionalText(t *testing.T) {
	d := NewDiffer(nil)
	base := func() *models.Snapshot { return models.NewSnapshot().Set("id", models.Int(1)) }

	tests := []struct {
		name    string
		before  *models.Snapshot
		after   *models.Snapshot
		changed bool
	}{
		{"null and empty", base().Set("observacoes", models.Null()), base().Set("observacoes", models.String("")), false},
		{"missing and empty", base(), base().Set("observacoes", models.String("")), false},
		{"missing and null", base().Set("observacoes", models.Null()), base(), false},
		{"empty and text", base().Set("observacoes", models.String("")), base().Set("observacoes", models.String("urgente")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := d.Diff(tt.before, tt.after, nil)
			assert.Equal(t, tt.changed, result.IsChanged("observacoes"))
		})
	}
}

func TestDiff_StrictComparisonOutsideRules(t *testing.T) {
	d := NewDiffer(nil)
	before := models.NewSnapshot().Set("valor_estimado", models.Int(3)).Set("objeto", models.String(""))
	after := models.NewSnapshot().Set("valor_estimado", models.String("3")).Set("objeto", models.Null())

	result := d.Diff(before, after, nil)

	assert.Equal(t, []string{"objeto", "valor_estimado"}, result.Changed)
}

func TestDiff_NilSnapshots(t *testing.T) {
	d := NewDiffer(nil)

	empty := d.Diff(nil, nil, nil)
	assert.True(t, empty.Empty())
	assert.NotNil(t, empty.Changed)
	assert.NotNil(t, empty.Changes)

	insert := d.Diff(nil, processo(3, "Obra"), testResolver())
	assert.Equal(t, []string{"numero_processo", "objeto", "situacao_nome", "id", "observacoes"}, insert.Changed)
	assert.Empty(t, insert.Before)
	assert.Contains(t, insert.Summary(), "objeto: (empty) -> Obra")

	del := d.Diff(models.NewSnapshot().Set("nome", models.String("Anulado")), nil, nil)
	assert.Equal(t, "nome: Anulado -> (empty)", del.Summary())
}

func TestDiff_PriorityOrder(t *testing.T) {
	d := NewDiffer(nil)
	after := models.NewSnapshot().
		Set("zeta", models.Int(1)).
		Set("situacao_id", models.Int(5)).
		Set("alpha", models.Int(2)).
		Set("numero_processo", models.String("003/2024"))

	result := d.Diff(nil, after, testResolver())

	assert.Equal(t, []string{"numero_processo", "situacao_nome", "zeta", "alpha"}, result.Changed)
}

func TestDiff_UnmappedForeignKey(t *testing.T) {
	d := NewDiffer(nil)
	before := models.NewSnapshot().Set("contrato_id", models.Int(1))

	changed := d.Diff(before, models.NewSnapshot().Set("contrato_id", models.Int(2)), nil)
	assert.Equal(t, []string{"contrato"}, changed.Changed)
	assert.Equal(t, "contrato: 1 -> 2", changed.Summary())

	same := d.Diff(before, models.NewSnapshot().Set("contrato_id", models.String("1")), nil)
	assert.True(t, same.Empty(), "ids compare by value, not by JSON type")
}

func TestDiff_CustomRules(t *testing.T) {
	rules, err := ParseRules([]byte(`
excluded: [id]
optional_text: [nota]
`))
	require.NoError(t, err)
	d := NewDiffer(rules)

	before := models.NewSnapshot().Set("id", models.Int(1)).Set("nota", models.String("")).Set("updated_at", models.String("a"))
	after := models.NewSnapshot().Set("id", models.Int(2)).Set("updated_at", models.String("b"))

	result := d.Diff(before, after, nil)

	assert.Equal(t, []string{"updated_at"}, result.Changed)
}
