package invoker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	tests := map[string]string{
		"":          "''",
		"plain":     "'plain'",
		"it's":      `'it'\''s'`,
		"''":        `''\'''\'''`,
		"$HOME `x`": "'$HOME `x`'",
	}
	for in, want := range tests {
		assert.Equal(t, want, quote(in), "quote(%q)", in)
	}
}

func TestReadFileCommand(t *testing.T) {
	assert.Equal(t, "tail -n 10 '/a b'", readFileCommand("/a b", -10))
	assert.Equal(t, "head -n 1 '/a b'", readFileCommand("/a b", 1))
	assert.Equal(t, "cat '/a b'", readFileCommand("/a b", 0))
}

func TestWriteFileCommand(t *testing.T) {
	assert.Equal(t, "echo 'x' > '/f'", writeFileCommand("/f", "x", false))
	assert.Equal(t, "echo 'x' >> '/f'", writeFileCommand("/f", "x", true))
}

func TestListFilesCommand(t *testing.T) {
	assert.Equal(t, "ls -la ~", listFilesCommand(""))
	assert.Equal(t, "ls -la ~/Documents", listFilesCommand("~/Documents"))
}
