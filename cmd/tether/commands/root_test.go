package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmdRegistersSubcommands(t *testing.T) {
	root := NewRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"version", "call", "fetch", "put", "repl"} {
		assert.True(t, names[want], "expected %q subcommand to be registered", want)
	}
}

func TestBuildLauncherRejectsUnknownTransport(t *testing.T) {
	_, err := buildLauncher(&transportFlags{kind: "telepathy"})
	assert.Error(t, err)
}

func TestBuildLauncherSSHDefault(t *testing.T) {
	l, err := buildLauncher(&transportFlags{kind: "ssh", user: "alice"})
	assert.NoError(t, err)
	assert.NotNil(t, l)
}

func TestBuildLauncherDockerBuildsRegardlessOfContainerOrImage(t *testing.T) {
	// buildLauncher only selects the Launcher implementation; validating
	// that Container or Image was supplied happens inside
	// DockerLauncher.Start, once a host is actually being dialed.
	l, err := buildLauncher(&transportFlags{kind: "docker"})
	assert.NoError(t, err)
	assert.NotNil(t, l)
}

func TestCallCmdRequiresAtLeastHostAndCallable(t *testing.T) {
	c := newCallCmd()
	assert.Error(t, c.Args(c, []string{"onlyhost"}))
	assert.NoError(t, c.Args(c, []string{"host", "callable"}))
}
