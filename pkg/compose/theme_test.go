package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decksmith/decksmith/pkg/retry"
)

func TestParseTheme_Valid(t *testing.T) {
	theme, err := parseTheme(themeJSON)
	require.NoError(t, err)
	assert.Equal(t, "test", theme.PaletteName)
	assert.Equal(t, "#101014", theme.Colors.PrimaryBackground)
	assert.Equal(t, "Inter", theme.Fonts.Hero)
	assert.False(t, theme.Fallback)
}

func TestParseTheme_FillsDefaults(t *testing.T) {
	raw := `{
		"palette_name": "sparse",
		"colors": {"primary_background": "#000000", "primary_text": "#FFFFFF", "accent_1": "#FF0000"}
	}`
	theme, err := parseTheme(raw)
	require.NoError(t, err)
	assert.Equal(t, "Inter", theme.Fonts.Hero)
	assert.Equal(t, theme.Fonts.Hero, theme.Fonts.Body)
	assert.NotEmpty(t, theme.StyleManifesto)
}

func TestParseTheme_RejectsUnusableDocuments(t *testing.T) {
	cases := map[string]string{
		"malformed JSON":    `{"palette_name": `,
		"missing colors":    `{"palette_name": "x", "colors": {}}`,
		"non-hex colors":    `{"colors": {"primary_background": "blue", "primary_text": "#fff", "accent_1": "#f00"}}`,
		"empty document":    `{}`,
		"wrong value types": `{"colors": "dark"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseTheme(raw)
			require.Error(t, err)
			kind, class := retry.Classify(err)
			assert.Equal(t, retry.KindOther, kind, "bad documents retry on the default curve")
			assert.Equal(t, retry.ClassRetryable, class)
		})
	}
}
