package transform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLegacy(t *testing.T) {
	in := map[string]any{
		"root_value":          10,
		"unit_precision":      2,
		"selector_black_list": []any{".a"},
		"prop_white_list":     []any{"margin"},
		"media_query":         true,
		"replace":             false,
	}
	out := NormalizeLegacy(in)

	assert.Equal(t, map[string]any{
		"rootValue":         10,
		"unitPrecision":     2,
		"selectorBlackList": []any{".a"},
		"propList":          []any{"margin"},
		"mediaQuery":        true,
		"replace":           false,
	}, out)
	assert.Contains(t, in, "root_value", "input must not be modified")
	assert.NotContains(t, in, "rootValue", "input must not be modified")
}

func TestNormalizeLegacy_EmptyList(t *testing.T) {
	out := NormalizeLegacy(map[string]any{"prop_white_list": []any{}})
	assert.Equal(t, map[string]any{"propList": []any{"*"}}, out)

	out = NormalizeLegacy(map[string]any{"propWhiteList": []string{}})
	assert.Equal(t, map[string]any{"propList": []any{"*"}}, out)

	// explicit list wins over the sentinel
	out = NormalizeLegacy(map[string]any{"propWhiteList": []any{}, "propList": []any{"margin"}})
	assert.Equal(t, map[string]any{"propList": []any{"margin"}}, out)

	// sentinel applies to legacy names only
	out = NormalizeLegacy(map[string]any{"propList": []any{}})
	assert.Equal(t, map[string]any{"propList": []any{}}, out)
}

func TestNormalizeLegacy_CurrentNameWins(t *testing.T) {
	for range 10 {
		out := NormalizeLegacy(map[string]any{
			"rootValue":       20,
			"root_value":      10,
			"prop_white_list": []any{"a"},
			"propWhiteList":   []any{"b"},
		})
		assert.Equal(t, map[string]any{"rootValue": 20, "propList": []any{"a"}}, out)
	}
}

func TestDecode_Defaults(t *testing.T) {
	for _, raw := range []any{nil, "options", 42, []any{1}} {
		opts, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, 16.0, opts.RootValue)
		assert.Equal(t, 5, opts.UnitPrecision)
		assert.Equal(t, DefaultPropList, opts.PropList)
		assert.True(t, opts.Replace)
		assert.False(t, opts.MediaQuery)
		assert.Zero(t, opts.MinPixelValue)
		assert.Nil(t, opts.Exclude)
		assert.Empty(t, opts.SelectorBlackList)
		assert.Equal(t, "px", opts.SourceUnit)
		assert.Equal(t, "rem", opts.TargetUnit)
	}
}

func TestDecode_Values(t *testing.T) {
	opts, err := Decode(map[string]any{
		"rootValue":         10.0,
		"unitPrecision":     3,
		"propList":          []any{"*"},
		"selectorBlackList": []any{".skip", map[string]any{"regexp": "^body$", "flags": "i"}},
		"replace":           false,
		"mediaQuery":        true,
		"minPixelValue":     2,
		"exclude":           map[string]any{"regexp": "node_modules"},
		"sourceUnit":        "rpx",
		"targetUnit":        "vw",
		"unknownOption":     "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, 10.0, opts.RootValue)
	assert.Equal(t, 3, opts.UnitPrecision)
	assert.Equal(t, []string{"*"}, opts.PropList)
	require.Len(t, opts.SelectorBlackList, 2)
	assert.Equal(t, ".skip", opts.SelectorBlackList[0].String())
	assert.Equal(t, "/^body$/i", opts.SelectorBlackList[1].String())
	assert.False(t, opts.Replace)
	assert.True(t, opts.MediaQuery)
	assert.Equal(t, 2.0, opts.MinPixelValue)
	require.NotNil(t, opts.Exclude)
	assert.Equal(t, "/node_modules/", opts.Exclude.String())
	assert.Equal(t, "rpx", opts.SourceUnit)
	assert.Equal(t, "vw", opts.TargetUnit)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"root value type", map[string]any{"rootValue": "16"}},
		{"root value zero", map[string]any{"rootValue": 0}},
		{"root value negative", map[string]any{"root_value": -4}},
		{"root value script", map[string]any{"rootValue": map[string]any{"script": "1 +"}}},
		{"root value object", map[string]any{"rootValue": map[string]any{"value": 1}}},
		{"precision fraction", map[string]any{"unitPrecision": 2.5}},
		{"precision negative", map[string]any{"unitPrecision": -1}},
		{"prop list type", map[string]any{"propList": "font"}},
		{"prop list entry", map[string]any{"propList": []any{"font", 1}}},
		{"replace type", map[string]any{"replace": "no"}},
		{"blacklist type", map[string]any{"selectorBlackList": ".a"}},
		{"blacklist entry", map[string]any{"selectorBlackList": []any{map[string]any{"flags": "i"}}}},
		{"exclude type", map[string]any{"exclude": 1}},
		{"empty unit", map[string]any{"unit": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestDecode_RegexpErrorIsLazy(t *testing.T) {
	// flags and syntax are validated on first match
	opts, err := Decode(map[string]any{"exclude": map[string]any{"regexp": "a", "flags": "q"}})
	require.NoError(t, err)
	_, err = opts.Exclude.Match("a")
	assert.ErrorIs(t, err, ErrPattern)
}

func TestParseOptions(t *testing.T) {
	data := []byte(`{
	// comments and trailing commas are allowed
	"root_value": 20,
	"propList": ["font*", "!font-weight",],
	"mediaQuery": true,
	/* block comment */
	"selectorBlackList": [".ignore", {"regexp": "^html$"}],
}`)
	opts, err := ParseOptions(data)
	require.NoError(t, err)

	assert.Equal(t, 20.0, opts.RootValue)
	assert.Equal(t, []string{"font*", "!font-weight"}, opts.PropList)
	assert.True(t, opts.MediaQuery)
	require.Len(t, opts.SelectorBlackList, 2)

	ok, err := opts.SelectorBlackList[1].Match("html")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoadOptionsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".pxtoremrc")
	require.NoError(t, os.WriteFile(path, []byte(`{"unitPrecision": 2}`), 0o644))

	opts, err := LoadOptionsFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, opts.UnitPrecision)

	_, err = LoadOptionsFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad")
	require.NoError(t, os.WriteFile(bad, []byte(`{"unitPrecision": `), 0o644))
	_, err = LoadOptionsFile(bad)
	assert.Error(t, err)
}
