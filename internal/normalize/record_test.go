package normalize

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadueduardo/MAF/internal/domain"
)

func writeRecord(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "record.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseRecordNestedGroups(t *testing.T) {
	path := writeRecord(t, `{
		"Produto": "ABC-100",
		"Cor": "Black",
		"Propriedades": {
			"Mecanicas": [
				{"Propriedade": "Density", "Valor": "1.23"}
			]
		}
	}`)

	s, err := ParseFile(FormatRecord, path)
	require.NoError(t, err)

	assert.Equal(t, "ABC-100", s.Product)
	assert.Equal(t, []domain.Property{
		{Key: "Cor", Value: "Black"},
		{Key: "Density", Value: "1.23"},
	}, s.Properties)

	lines := strings.Split(s.Text, "\n")
	assert.Equal(t, []string{
		"=== TECHNICAL DATA SHEET START ===",
		"PRODUCT: ABC-100",
		"Cor: Black",
		"Density: 1.23",
		"=== TECHNICAL DATA SHEET END ===",
	}, lines)
}

func TestParseRecordProductKeyPriority(t *testing.T) {
	path := writeRecord(t, `{"name": "Fallback", "produto": "Primary"}`)

	s, err := ParseFile(FormatRecord, path)
	require.NoError(t, err)

	assert.Equal(t, "Primary", s.Product)
	// The matched key is consumed; the losing candidate stays a property.
	assert.Equal(t, []domain.Property{{Key: "name", Value: "Fallback"}}, s.Properties)
}

func TestParseRecordNoProductName(t *testing.T) {
	path := writeRecord(t, `{"color": "blue", "density": "1.0"}`)

	_, err := ParseFile(FormatRecord, path)
	require.ErrorIs(t, err, ErrNoProductName)
}

func TestParseRecordSingleElementArray(t *testing.T) {
	path := writeRecord(t, `[{"Product": "XYZ-1", "Grade": "injection"}]`)

	s, err := ParseFile(FormatRecord, path)
	require.NoError(t, err)
	assert.Equal(t, "XYZ-1", s.Product)
	assert.Equal(t, []domain.Property{{Key: "Grade", Value: "injection"}}, s.Properties)
}

func TestParseRecordRejectsMultiElementArray(t *testing.T) {
	path := writeRecord(t, `[{"Product": "A"}, {"Product": "B"}]`)

	_, err := ParseFile(FormatRecord, path)
	require.Error(t, err)
}

func TestParseRecordScalars(t *testing.T) {
	path := writeRecord(t, `{
		"Product": "S-1",
		"Shore": 85,
		"Food Grade": true,
		"Notes": null
	}`)

	s, err := ParseFile(FormatRecord, path)
	require.NoError(t, err)
	assert.Equal(t, []domain.Property{
		{Key: "Shore", Value: "85"},
		{Key: "Food Grade", Value: "true"},
	}, s.Properties)
}

func TestParseRecordPropertyPairList(t *testing.T) {
	path := writeRecord(t, `{
		"Product": "P-2",
		"Specs": [
			{"Propriedade": "MFR", "Valor": "12 g/10min"},
			{"Property": "Izod", "Value": "5 kJ/m2"}
		]
	}`)

	s, err := ParseFile(FormatRecord, path)
	require.NoError(t, err)
	assert.Equal(t, []domain.Property{
		{Key: "MFR", Value: "12 g/10min"},
		{Key: "Izod", Value: "5 kJ/m2"},
	}, s.Properties)
}

func TestParseRecordDeterministic(t *testing.T) {
	path := writeRecord(t, `{"Produto": "D-1", "B": "2", "A": "1", "C": "3"}`)

	first, err := ParseFile(FormatRecord, path)
	require.NoError(t, err)
	second, err := ParseFile(FormatRecord, path)
	require.NoError(t, err)

	// Source order is preserved, not sorted, and repeat runs agree.
	assert.Equal(t, []domain.Property{
		{Key: "B", Value: "2"},
		{Key: "A", Value: "1"},
		{Key: "C", Value: "3"},
	}, first.Properties)
	assert.Equal(t, first, second)
}
