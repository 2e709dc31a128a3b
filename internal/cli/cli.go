package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/rawbytedev/cpod/pkg/value"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Config is the validated command line.
type Config struct {
	Command   string
	Input     string // path, "-" for stdin
	Name      string
	Type      string // type spelling for get, empty to use the declared one
	Flags     value.FormatFlags
	Compress  bool
	Level     zstd.EncoderLevel
	Output    string // path, empty for stdout
	Format    string // dump format: text or yaml
	LogLevel  string
	LogFormat string
}

var commands = []string{"normalize", "names", "get", "compile", "dump"}

const usage = `
cpod - read, write and compile C++ style plain data files.

Usage:
  cpod normalize [options] FILE
  cpod names     [options] FILE
  cpod get       [options] FILE NAME
  cpod compile   [options] FILE
  cpod dump      [options] FILE

FILE may be "-" for standard input. Lines starting with '#' and
'using namespace' lines are ignored.

Options:
`

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("cpod", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, usage)
		flagSet.PrintDefaults()
	}

	typeFlag := flagSet.String("type", "", "get: type to read the declaration as, e.g. 'std::vector<int>'. Defaults to the declared type.")
	neatFlag := flagSet.Bool("neat", false, "Write integer types as intN_t/uintN_t.")
	noStdFlag := flagSet.Bool("nostd", false, "Write library types without the std:: prefix.")
	hexFlag := flagSet.Bool("hex", false, "Write integers in hexadecimal.")
	binFlag := flagSet.Bool("bin", false, "Write integers in binary. Wins over -hex.")
	upperFlag := flagSet.Bool("upper", false, "Upper-case hex digits and exponent markers.")
	sciFlag := flagSet.Bool("sci", false, "Write floats in scientific notation.")
	fixedFlag := flagSet.Bool("fixed", false, "Write floats in fixed notation.")
	zstdFlag := flagSet.Bool("zstd", false, "compile: compress the record stream with zstd.")
	levelFlag := flagSet.String("level", "default", "compile: zstd level. Options: 'fastest', 'default', 'better', 'best'.")
	outFlag := flagSet.String("o", "", "compile: output file. Defaults to standard output.")
	formatFlag := flagSet.String("format", "text", "dump: output format. Options: 'text' or 'yaml'.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "warn", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if len(args) == 0 {
		flagSet.Usage()
		return nil, true, nil
	}
	cmd := args[0]
	if cmd == "-h" || cmd == "-help" || cmd == "--help" || cmd == "help" {
		flagSet.Usage()
		return nil, true, nil
	}
	if !slices.Contains(commands, cmd) {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q: must be one of %s", cmd, strings.Join(commands, ", "))}
	}

	if err := flagSet.Parse(args[1:]); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.", "command", cmd)

	want := 1
	if cmd == "get" {
		want = 2
	}
	if flagSet.NArg() != want {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("%s: expected %d argument(s), got %d", cmd, want, flagSet.NArg())}
	}

	cfg := &Config{
		Command:  cmd,
		Input:    flagSet.Arg(0),
		Type:     *typeFlag,
		Compress: *zstdFlag,
		Output:   *outFlag,
	}
	if cmd == "get" {
		cfg.Name = flagSet.Arg(1)
	}

	for _, f := range []struct {
		set  bool
		flag value.FormatFlags
	}{
		{*neatFlag, value.IntNeatType},
		{*noStdFlag, value.NoStdPrefix},
		{*hexFlag, value.IntHex},
		{*binFlag, value.IntBinary},
		{*upperFlag, value.IntUpper | value.FloatUpperExp},
		{*sciFlag, value.FloatScientific},
		{*fixedFlag, value.FloatFixed},
	} {
		if f.set {
			cfg.Flags |= f.flag
		}
	}

	switch strings.ToLower(*levelFlag) {
	case "fastest":
		cfg.Level = zstd.SpeedFastest
	case "default":
		cfg.Level = zstd.SpeedDefault
	case "better":
		cfg.Level = zstd.SpeedBetterCompression
	case "best":
		cfg.Level = zstd.SpeedBestCompression
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid level: must be 'fastest', 'default', 'better' or 'best'"}
	}

	cfg.Format = strings.ToLower(*formatFlag)
	if cfg.Format != "text" && cfg.Format != "yaml" {
		return nil, false, &ExitError{Code: 2, Message: "invalid format: must be 'text' or 'yaml'"}
	}

	cfg.LogFormat = strings.ToLower(*logFormatFlag)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	cfg.LogLevel = strings.ToLower(*logLevelFlag)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if cfg.Type != "" && cmd != "get" {
		return nil, false, &ExitError{Code: 2, Message: "-type is only valid with get"}
	}
	slog.Debug("CLI parser finished successfully.", "config", cfg)
	return cfg, false, nil
}

// NewLogger creates and configures a new slog.Logger instance. It does not
// set the global logger, allowing for isolated logger instances.
func NewLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler

	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}

	return slog.New(handler)
}
