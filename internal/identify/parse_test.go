package identify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNames(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", []string{}},
		{"whitespace", "  \n", []string{}},
		{"none", "None", []string{}},
		{"none any case", "  nOnE ", []string{}},
		{"single", "Catan", []string{"Catan"}},
		{"trims and drops empties", " Catan ,, Azul , ", []string{"Catan", "Azul"}},
		{"exact duplicates after trim", "catan, Catan , ", []string{"catan", "Catan"}},
		{"keeps first occurrence", "Azul, Catan, Azul ,Catan", []string{"Azul", "Catan"}},
		{"none inside a list is a name", "Catan, None", []string{"Catan", "None"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseNames(tt.raw))
		})
	}
}

func TestParseDataURL(t *testing.T) {
	img := ParseDataURL("data:image/png;base64,iVBORw0K")
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, "iVBORw0K", img.Data)

	img = ParseDataURL("data:image/webp;base64,AAA,BBB")
	assert.Equal(t, "AAA,BBB", img.Data, "only the first comma splits")

	img = ParseDataURL("no-comma-here")
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.Empty(t, img.Data)

	img = ParseDataURL("garbage,AAAA")
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.Equal(t, "AAAA", img.Data)

	img = ParseDataURL("data:;base64,AAAA")
	assert.Equal(t, "image/jpeg", img.MimeType)
}

func TestDecodeCanonical(t *testing.T) {
	games, err := decodeCanonical([]byte(`{"games":[{"gameName":"Catan"},{"gameName":"  "},{"other":"x"},{"gameName":" Azul "}]}`))
	assert.NoError(t, err)
	if assert.Len(t, games, 2) {
		assert.Equal(t, "Catan", games[0].GameName)
		assert.Nil(t, games[0].BggID)
		assert.Equal(t, "Azul", games[1].GameName)
	}

	games, err = decodeCanonical([]byte(` [{"gameName":"Splendor"}]`))
	assert.NoError(t, err)
	assert.Len(t, games, 1)

	_, err = decodeCanonical([]byte(`Sorry, I cannot help`))
	assert.ErrorIs(t, err, errNotJSONList)

	_, err = decodeCanonical([]byte(`{"games":"Catan"}`))
	assert.Error(t, err)
}
