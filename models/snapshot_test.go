package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_KeepsFieldOrder(t *testing.T) {
	s, err := ParseSnapshot([]byte(`{"objeto":"Obra","id":42,"situacao_id":3,"observacoes":null,"ativo":true,"anexos":[1, 2]}`))
	require.NoError(t, err)

	names := make([]string, 0, s.Len())
	for _, f := range s.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"objeto", "id", "situacao_id", "observacoes", "ativo", "anexos"}, names)

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `{"objeto":"Obra","id":42,"situacao_id":3,"observacoes":null,"ativo":true,"anexos":"[1,2]"}`, string(out))
}

func TestSnapshot_SetReplacesInPlace(t *testing.T) {
	s := NewSnapshot().Set("a", Int(1)).Set("b", Int(2)).Set("a", String("x"))

	require.Equal(t, 2, s.Len())
	v, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "x", v.Display())
	assert.Equal(t, "a", s.Fields()[0].Name)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestParseSnapshot_Empty(t *testing.T) {
	for _, in := range []string{"", "null", "  "} {
		s, err := ParseSnapshot([]byte(in))
		assert.NoError(t, err)
		assert.Nil(t, s)
	}

	var nilSnap *Snapshot
	assert.Zero(t, nilSnap.Len())
	assert.Nil(t, nilSnap.Fields())

	_, err := ParseSnapshot([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestValue_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same numbers", Int(3), Number(3), true},
		{"different numbers", Int(3), Int(5), false},
		{"number and numeric string", Int(3), String("3"), false},
		{"nulls", Null(), Null(), true},
		{"null and empty string", Null(), String(""), false},
		{"bools", Bool(true), Bool(true), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestValue_Int64(t *testing.T) {
	n, ok := Int(7).Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)

	n, ok = String("12").Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(12), n)

	_, ok = Number(1.5).Int64()
	assert.False(t, ok)

	_, ok = Null().Int64()
	assert.False(t, ok)
}

func TestValue_Display(t *testing.T) {
	assert.Equal(t, "", Null().Display())
	assert.Equal(t, "1500.5", Number(1500.5).Display())
	assert.Equal(t, "false", Bool(false).Display())
}
