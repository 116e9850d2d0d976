package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	id, err := parseID("12")
	require.NoError(t, err)
	assert.Equal(t, uint(12), id)

	for _, arg := range []string{"0", "-1", "abc", ""} {
		_, err := parseID(arg)
		assert.Error(t, err, arg)
	}
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range RootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"start", "sync", "cleanup", "datasource", "migrate", "integrity"} {
		assert.True(t, names[want], want)
	}

	sub, _, err := RootCmd.Find([]string{"datasource", "import"})
	require.NoError(t, err)
	assert.Equal(t, "import", sub.Name())
}
