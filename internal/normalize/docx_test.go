package normalize

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadueduardo/MAF/internal/domain"
)

func TestClassifyLines(t *testing.T) {
	text := "Produto: ABC-100\n" +
		"Property  Typical Values  Unit  Method\n" +
		"Density  1.23  g/cm3\n" +
		"Aplicacao: Injection molding\n"

	product, props := classifyLines(text)

	assert.Equal(t, "ABC-100", product)
	assert.Equal(t, []domain.Property{
		{Key: "Density", Value: "1.23 g/cm3"},
		{Key: "Aplicacao", Value: "Injection molding"},
	}, props)
}

func TestClassifyLinesTrailingLabel(t *testing.T) {
	product, _ := classifyLines("Produto: ABC-100 Cor: Preto\n")
	assert.Equal(t, "ABC-100", product)
}

func TestClassifyLinesFirstProductWins(t *testing.T) {
	product, props := classifyLines("Product: FIRST\nProduct: SECOND\n")
	assert.Equal(t, "FIRST", product)
	assert.Empty(t, props)
}

func TestClassifyLinesTableRow(t *testing.T) {
	_, props := classifyLines("Tensile Strength   25   MPa   ISO 527\n")
	// First column is the name, the rest collapse into the value.
	require.Len(t, props, 1)
	assert.Equal(t, domain.Property{Key: "Tensile Strength", Value: "25 MPa ISO 527"}, props[0])
}

func writeDocx(t *testing.T, documentXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sheet.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestParseOfficeDocument(t *testing.T) {
	path := writeDocx(t, `<document><body>`+
		`<p><r><t>Produto: ABC-100</t></r></p>`+
		`<tbl>`+
		`<tr><tc><p><r><t>Propriedade</t></r></p></tc><tc><p><r><t>Valor</t></r></p></tc></tr>`+
		`<tr><tc><p><r><t>Density</t></r></p></tc><tc><p><r><t>1.23 g/cm3</t></r></p></tc></tr>`+
		`</tbl>`+
		`</body></document>`)

	s, err := ParseFile(FormatOfficeDocument, path)
	require.NoError(t, err)

	assert.Equal(t, "ABC-100", s.Product)
	assert.Equal(t, []domain.Property{{Key: "Density", Value: "1.23 g/cm3"}}, s.Properties)
	assert.Contains(t, s.Text, "PRODUCT: ABC-100")
	assert.Contains(t, s.Text, "Density: 1.23 g/cm3")
}

func TestParseOfficeDocumentNoProduct(t *testing.T) {
	path := writeDocx(t, `<document><body><p><r><t>Just some prose.</t></r></p></body></document>`)

	_, err := ParseFile(FormatOfficeDocument, path)
	require.ErrorIs(t, err, ErrNoProductName)
}
