package changeset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogem/licitacoes/models"
)

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()

	assert.True(t, rules.IsExcluded("updated_at"))
	assert.True(t, rules.IsOptionalText("observacoes"))
	assert.False(t, rules.IsOptionalText("objeto"))

	fk, ok := rules.ForeignKey("situacao_id")
	require.True(t, ok)
	assert.Equal(t, ForeignKey{Kind: models.ReferenceStatus, Name: "situacao_nome"}, fk)

	for _, kind := range models.ReferenceKinds {
		found := false
		for _, fk := range rules.ForeignKeys {
			if fk.Kind == kind {
				found = true
			}
		}
		assert.True(t, found, "no foreign key resolves to %s", kind)
	}
}

func TestParseRules_Invalid(t *testing.T) {
	tests := map[string]string{
		"not yaml":      "foreign_keys: [",
		"no _id suffix": "foreign_keys:\n  situacao:\n    kind: status\n    name: situacao_nome\n",
		"unknown kind":  "foreign_keys:\n  contrato_id:\n    kind: contract\n    name: contrato_nome\n",
		"no name":       "foreign_keys:\n  situacao_id:\n    kind: status\n",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadRules(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.True(t, rules.IsExcluded("updated_at"))

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("excluded: [created_at]\npriority: [objeto]\n"), 0o600))

	rules, err = LoadRules(path)
	require.NoError(t, err)
	assert.True(t, rules.IsExcluded("created_at"))
	assert.False(t, rules.IsExcluded("updated_at"))

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
