package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun     Command = "run"
	CommandServe   Command = "serve"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:     {},
	CommandServe:   {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

// Parsed is the validated command line. StreamIDSet distinguishes an explicit
// empty --uuid from an absent one.
type Parsed struct {
	Command     Command
	ConfigPath  string
	StreamID    string
	StreamIDSet bool
	SocketPath  string
	ShowHelp    bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandRun}
	sawCommand := false

	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, inline, hasInline := strings.Cut(arg, "=")
		if !strings.HasPrefix(arg, "--") {
			hasInline = false
			name = arg
		}

		value := func() (string, error) {
			if hasInline {
				return inline, nil
			}
			i++
			if i >= len(args) {
				return "", fmt.Errorf("%s requires a value", name)
			}
			return args[i], nil
		}

		switch name {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.Command = CommandVersion
		case "--uuid":
			v, err := value()
			if err != nil {
				return Parsed{}, err
			}
			parsed.StreamID = v
			parsed.StreamIDSet = true
		case "--config":
			v, err := value()
			if err != nil {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = v
		case "--socket":
			v, err := value()
			if err != nil {
				return Parsed{}, errors.New("--socket requires a path")
			}
			parsed.SocketPath = v
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}
			if sawCommand {
				return Parsed{}, fmt.Errorf("unexpected argument %q after command %q", arg, parsed.Command)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			sawCommand = true
			parsed.Command = cmd
		}
	}

	parsed.ShowHelp = parsed.Command == CommandHelp
	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--uuid ID] [--config PATH] [command]

Reads one JSON command per line on stdin and writes one framed JSON
response per line on stdout.

Commands:
  run       Serve commands from stdin (default)
  serve     Serve commands on a unix socket (--socket PATH)
  doctor    Run configuration and codec checks
  version   Print version information
  help      Show this help

Flags:
  --uuid ID       Stream id embedded in response markers (default: None)
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/imgworker/config.jsonc)
  --socket PATH   Socket path for serve/doctor (default: $XDG_RUNTIME_DIR/imgworker.sock)
  -h, --help      Show help
  --version       Show version

Commands on stdin:
  {"cmd": 0}                                   report runtime version
  {"cmd": 1, "input": PATH, "output": PATH}    write grayscale copy of input
`, binaryName)
}
