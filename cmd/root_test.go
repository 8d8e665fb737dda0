package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"collect", "serve", "migrate", "status", "runs", "seed", "import", "export", "worker", "schedule"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "pe-intel", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)

	flag := rootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag, "root should have --config flag")
}

func TestCollectCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"entity", "source", "mode", "id", "firm-type", "sector", "max-age", "concurrency"} {
		flag := collectCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "collect should have --%s flag", flagName)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestSeedCommand_Flags(t *testing.T) {
	flag := seedCmd.Flags().Lookup("file")
	require.NotNil(t, flag, "seed command should have --file flag")
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"list", "show", "stats"} {
		assert.True(t, names[name], "runs should have subcommand %q", name)
	}
}

func TestExportCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range exportCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"xlsx", "salesforce", "notion"} {
		assert.True(t, names[name], "export should have subcommand %q", name)
	}
}

func TestScheduleCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range scheduleCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"ensure", "trigger"} {
		assert.True(t, names[name], "schedule should have subcommand %q", name)
	}
}
