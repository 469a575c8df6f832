package shared

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHook struct {
	strings.Builder
}

func (*testHook) Close() error { return nil }

func TestPrinterWrite(t *testing.T) {
	hook := new(testHook)
	p, err := NewPrinter("| ", hook)
	require.NoError(t, err)

	require.NoError(t, p.Writeln("first", 0))
	require.NoError(t, p.Writeln("a\nb", 1))
	require.NoError(t, p.Write("tail", 2))

	assert.Equal(t, "first\n| a\n| b\n| | tail", hook.String())
}

func TestPrinterWriteRaw(t *testing.T) {
	hook := new(testHook)
	p, err := NewPrinter("| ", hook)
	require.NoError(t, err)

	// Raw writes never get indent treatment, even mid-line.
	require.NoError(t, p.WriteRaw("agent> "))
	require.NoError(t, p.WriteRaw("tok"))
	require.NoError(t, p.WriteRaw("en\n"))

	assert.Equal(t, "agent> token\n", hook.String())
}

func TestNewPrinterValidation(t *testing.T) {
	_, err := NewPrinter("  ")
	assert.Error(t, err)

	_, err = NewPrinter("  ", nil)
	assert.Error(t, err)
}
