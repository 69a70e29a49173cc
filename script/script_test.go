package script

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{"function expression", "function (file) { return 16 }", false},
		{"arrow function", "(file) => file.length", false},
		{"empty", "   ", true},
		{"syntax error", "function (file) {", true},
		{"not a function", "42", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, f)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, f.String())
		})
	}
}

func TestCompile_NotFunction(t *testing.T) {
	_, err := Compile("'text'")
	assert.ErrorIs(t, err, ErrNotFunction)
}

func TestFunc_Number(t *testing.T) {
	f, err := Compile("function (file) { return file.indexOf('basic.css') !== -1 ? 15 : 20 }")
	require.NoError(t, err)

	n, err := f.Number("/tmp/basic.css")
	require.NoError(t, err)
	assert.Equal(t, 15.0, n)

	n, err = f.Number("/tmp/whatever.css")
	require.NoError(t, err)
	assert.Equal(t, 20.0, n)
}

func TestFunc_NumberErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"undefined", "function () {}"},
		{"nan", "function () { return NaN }"},
		{"infinity", "function () { return 1/0 }"},
		{"throws", "function () { throw new Error('boom') }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.src)
			require.NoError(t, err)
			_, err = f.Number("x")
			assert.Error(t, err)
		})
	}
}

func TestFunc_Bool(t *testing.T) {
	f, err := Compile("(file) => file.includes('exclude')")
	require.NoError(t, err)

	got, err := f.Bool("exclude/path")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = f.Bool("include/path")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestFunc_ConcurrentCalls(t *testing.T) {
	f, err := Compile("(file) => file.length")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := f.Number(string(make([]byte, i)))
			assert.NoError(t, err)
			assert.Equal(t, float64(i), n)
		}()
	}
	wg.Wait()
}
