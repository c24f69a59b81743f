package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	assert.Equal(t, "epiflow dev\n", execute(t, "version"))
}

func TestConfigCommand_PrintsEmbeddedDefaults(t *testing.T) {
	out := execute(t, "config", "--env-file", "")
	assert.Contains(t, out, "name: epidemicPipeline")
	assert.Contains(t, out, "base_dir: data/output")
	assert.Contains(t, out, "Kosovo: XKX")
}
