package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToRun(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.False(t, parsed.ShowHelp)
	require.Equal(t, CommandRun, parsed.Command)
	require.Empty(t, parsed.StreamID)
	require.False(t, parsed.StreamIDSet)
}

func TestParseWorkerInvocation(t *testing.T) {
	parsed, err := Parse([]string{"--uuid", "7f3c", "--config", "/tmp/imgworker.jsonc"})
	require.NoError(t, err)
	require.Equal(t, CommandRun, parsed.Command)
	require.Equal(t, "7f3c", parsed.StreamID)
	require.True(t, parsed.StreamIDSet)
	require.Equal(t, "/tmp/imgworker.jsonc", parsed.ConfigPath)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantErr    string
		wantCmd    Command
		wantHelp   bool
		wantID     string
		wantIDSet  bool
		wantPath   string
		wantSocket string
	}{
		{name: "help short flag", args: []string{"-h"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help long flag", args: []string{"--help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help command", args: []string{"help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "version flag", args: []string{"--version"}, wantCmd: CommandVersion},
		{name: "inline uuid", args: []string{"--uuid=abc-1"}, wantCmd: CommandRun, wantID: "abc-1", wantIDSet: true},
		{name: "inline uuid keeps later equals", args: []string{"--uuid=a=b"}, wantCmd: CommandRun, wantID: "a=b", wantIDSet: true},
		{name: "empty inline uuid", args: []string{"--uuid="}, wantCmd: CommandRun, wantID: "", wantIDSet: true},
		{name: "empty uuid value", args: []string{"--uuid", ""}, wantCmd: CommandRun, wantID: "", wantIDSet: true},
		{name: "flags after command", args: []string{"run", "--uuid", "x"}, wantCmd: CommandRun, wantID: "x", wantIDSet: true},
		{
			name:       "serve with socket",
			args:       []string{"--socket", "/tmp/w.sock", "serve", "--uuid", "s1"},
			wantCmd:    CommandServe,
			wantID:     "s1",
			wantIDSet:  true,
			wantSocket: "/tmp/w.sock",
		},
		{name: "doctor with config", args: []string{"--config=/tmp/cfg", "doctor"}, wantCmd: CommandDoctor, wantPath: "/tmp/cfg"},
		{name: "missing uuid value", args: []string{"--uuid"}, wantErr: "--uuid requires a value"},
		{name: "missing config path", args: []string{"--config"}, wantErr: "requires a path"},
		{name: "missing socket path", args: []string{"serve", "--socket"}, wantErr: "--socket requires a path"},
		{name: "unknown flag", args: []string{"--bogus"}, wantErr: "unknown flag"},
		{name: "unknown command", args: []string{"bogus"}, wantErr: "unknown command"},
		{name: "two commands", args: []string{"run", "doctor"}, wantErr: "unexpected argument"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantID, parsed.StreamID)
			require.Equal(t, tc.wantIDSet, parsed.StreamIDSet)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
			require.Equal(t, tc.wantSocket, parsed.SocketPath)
		})
	}
}

func TestHelpTextIncludesCoreCommands(t *testing.T) {
	text := HelpText("imgworker")
	require.Contains(t, text, "Usage:")
	require.Contains(t, text, "serve")
	require.Contains(t, text, "doctor")
	require.Contains(t, text, "--uuid ID")
	require.Contains(t, text, "--config PATH")
	require.Contains(t, text, `{"cmd": 0}`)
}
