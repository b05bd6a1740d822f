package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Wiring(t *testing.T) {
	assert.Equal(t, "acs", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("api-key"))

	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"query", "variables", "cache", "serve"} {
		assert.Contains(t, names, want)
	}
}

func TestQueryCommand_Flags(t *testing.T) {
	flags := queryCmd.Flags()
	for _, name := range []string{"years", "variables", "for", "in", "geometry", "resolution", "file", "output"} {
		require.NotNil(t, flags.Lookup(name), "query should define --%s", name)
	}

	// The two flags with non-empty defaults.
	assert.Equal(t, "5", flags.Lookup("estimate").DefValue)
	assert.Equal(t, "csv", flags.Lookup("format").DefValue)
}

func TestVariablesCommand_Flags(t *testing.T) {
	flags := variablesCmd.Flags()
	require.NotNil(t, flags.Lookup("years"))
	assert.Equal(t, "5", flags.Lookup("estimate").DefValue)
}

func TestCacheCommand_Subcommands(t *testing.T) {
	var names []string
	for _, c := range cacheCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "status")
	assert.Contains(t, names, "clear")
}

func TestServeCommand_PortFlag(t *testing.T) {
	port := serveCmd.Flags().Lookup("port")
	require.NotNil(t, port)
	// Zero defers to the configured port.
	assert.Equal(t, "0", port.DefValue)
}
