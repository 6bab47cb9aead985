package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"advise", "serve", "farm", "history", "report", "migrate", "cache"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "irrigation-advisor", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestAdviseCommand_Flags(t *testing.T) {
	for _, name := range []string{"farmer", "crop", "lat", "lon"} {
		require.NotNil(t, adviseCmd.Flags().Lookup(name), "advise should have --%s", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestFarmCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range farmCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["set"])
	assert.True(t, names["show"])
}

func TestHistoryCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range historyCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["record"])
	assert.True(t, names["list"])

	flag := historyListCmd.Flags().Lookup("days")
	require.NotNil(t, flag)
	assert.Equal(t, "30", flag.DefValue)
}

func TestReportCommand_Flags(t *testing.T) {
	flag := reportCmd.Flags().Lookup("out")
	require.NotNil(t, flag)
	assert.Equal(t, "irrigation-report.xlsx", flag.DefValue)
	assert.Equal(t, "o", flag.Shorthand)
}

func TestCacheCommand_HasPurge(t *testing.T) {
	require.Len(t, cacheCmd.Commands(), 1)
	assert.Equal(t, "purge", cacheCmd.Commands()[0].Name())
}
