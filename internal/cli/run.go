package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rawbytedev/cpod"
	"github.com/rawbytedev/cpod/pkg/frame"
	"github.com/rawbytedev/cpod/pkg/record"
	"github.com/rawbytedev/cpod/pkg/textcodec"
	"github.com/rawbytedev/cpod/pkg/value"
	"gopkg.in/yaml.v3"
)

// Streams are the process streams a command runs against.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Run executes the command in cfg.
func Run(cfg *Config, s Streams) error {
	logger := NewLogger(cfg.LogLevel, cfg.LogFormat, s.Err)
	logger.Debug("Running command.", "command", cfg.Command, "input", cfg.Input)

	data, err := readInput(cfg.Input, s.In)
	if err != nil {
		return err
	}
	if cfg.Command == "dump" {
		return dump(cfg, data, s.Out, logger)
	}

	a := cpod.NewArchive(StripDirectives(string(data)), cpod.WithLogger(logger))
	switch cfg.Command {
	case "normalize":
		if err := a.Normalize(); err != nil {
			return err
		}
		_, err := fmt.Fprintln(s.Out, a.Content())
		return err
	case "names":
		names, err := a.Names()
		if err != nil {
			return err
		}
		for _, n := range names {
			if _, err := fmt.Fprintln(s.Out, n); err != nil {
				return err
			}
		}
		return nil
	case "get":
		v, err := get(a, cfg)
		if err != nil {
			return err
		}
		out, err := textcodec.Write(nil, cfg.Name, v, cfg.Flags)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(s.Out, "%s\n", out)
		return err
	case "compile":
		return compile(a, cfg, s.Out, logger)
	}
	return &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q", cfg.Command)}
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// StripDirectives blanks preprocessor lines and `using namespace` lines so
// that headers written for a C++ compiler load unchanged. Line count is kept.
func StripDirectives(src string) string {
	var sb strings.Builder
	sb.Grow(len(src))
	for line := range strings.Lines(src) {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "using namespace") {
			if strings.HasSuffix(line, "\n") {
				sb.WriteByte('\n')
			}
			continue
		}
		sb.WriteString(line)
	}
	return sb.String()
}

func get(a *cpod.Archive, cfg *Config) (value.Value, error) {
	if cfg.Type == "" {
		return a.Lookup(cfg.Name)
	}
	t, err := value.ParseType(cfg.Type)
	if err != nil {
		return value.Value{}, &ExitError{Code: 2, Message: err.Error()}
	}
	return a.Get(cfg.Name, t)
}

func compile(a *cpod.Archive, cfg *Config, stdout io.Writer, logger *slog.Logger) error {
	data, err := a.Pack(frame.Options{Compress: cfg.Compress, Level: cfg.Level})
	if err != nil {
		return err
	}
	logger.Info("Archive compiled.", "bytes", len(data), "compressed", cfg.Compress)
	if cfg.Output == "" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(cfg.Output, data, 0o644)
}

func dump(cfg *Config, data []byte, out io.Writer, logger *slog.Logger) error {
	stream := data
	if frame.IsFrame(data) {
		h, err := frame.Inspect(data)
		if err != nil {
			return err
		}
		logger.Debug("Frame header read.", "version", h.Version, "compressed", h.Compressed(), "payload", h.PayloadLen)
		if stream, err = frame.Decode(data); err != nil {
			return err
		}
	}

	doc := &yaml.Node{Kind: yaml.SequenceNode}
	rd := record.NewReader(stream)
	for rd.Next() {
		r := rd.Record()
		v, err := r.Value()
		if err != nil {
			return fmt.Errorf("record %q: %w", r.Name, err)
		}
		if cfg.Format == "yaml" {
			node, err := value.NamedNode(r.Name, v)
			if err != nil {
				return err
			}
			doc.Content = append(doc.Content, node)
			continue
		}
		line, err := textcodec.Write(nil, r.Name, v, cfg.Flags)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "%s\n", line); err != nil {
			return err
		}
	}
	if err := rd.Err(); err != nil {
		return err
	}
	if cfg.Format != "yaml" {
		return nil
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
