package csvparser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStripsBOMAndKeepsBanners(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Report for May\n\nSKU,Amount\nA,1.5\n")...)

	rows, err := Parse(data, Options{})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"Report for May"}, {"SKU", "Amount"}, {"A", "1.5"}}, rows)
}

func TestParseFallsBackToLatin1(t *testing.T) {
	// "Café" in ISO-8859-1: 0xE9 is not valid UTF-8 on its own.
	data := []byte("Name,Amount\nCaf\xe9,2\n")

	rows, err := Parse(data, Options{Encoding: "auto"})
	require.NoError(t, err)
	assert.Equal(t, "Café", rows[1][0])

	_, err = Parse(data, Options{Encoding: "utf-8"})
	assert.ErrorContains(t, err, "not valid UTF-8")
}

func TestParseWindows1252(t *testing.T) {
	// 0x80 is the euro sign in Windows-1252.
	rows, err := Parse([]byte("\x80,1\n"), Options{Encoding: "windows-1252"})
	require.NoError(t, err)
	assert.Equal(t, "€", rows[0][0])
}

func TestParseDelimiters(t *testing.T) {
	rows, err := Parse([]byte("a;b\n1;2\n"), Options{Delimiter: "semicolon"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, rows[1])

	rows, err = Parse([]byte("a\tb\n"), Options{Delimiter: "tab"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rows[0])
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(nil, Options{})
	assert.ErrorContains(t, err, "CSV file is empty")
}

func TestParseUnsupportedEncoding(t *testing.T) {
	_, err := Parse([]byte("a\n"), Options{Encoding: "ebcdic"})
	assert.ErrorContains(t, err, "unsupported encoding")
}

func TestReadGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx.csv")
	require.NoError(t, os.WriteFile(path, []byte("SKU\nA\n"), 0o644))

	rows, err := ReadGrid(path, Options{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = ReadGrid(filepath.Join(t.TempDir(), "missing.csv"), Options{})
	assert.ErrorContains(t, err, "failed to open file")
}

func TestIsRowEmpty(t *testing.T) {
	assert.True(t, IsRowEmpty([]string{"", "  "}))
	assert.True(t, IsRowEmpty(nil))
	assert.False(t, IsRowEmpty([]string{"", "x"}))
}
