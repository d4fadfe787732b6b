package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dray-io/shardroute/internal/config"
	"github.com/dray-io/shardroute/internal/fragment"
	"github.com/dray-io/shardroute/internal/routing"
	"github.com/dray-io/shardroute/internal/stream"
)

var errRoutingsDiffer = errors.New("routings differ")

func (c *cli) flagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.Usage = func() {
		fmt.Fprintf(c.stderr, "Usage: routingctl %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errUsage
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func (c *cli) runEncode(args []string) error {
	fs := c.flagSet("encode", "encode [options]")
	configPath := fs.String("config", "", "Path to configuration file")
	in := fs.String("in", "-", "YAML description to read, - for stdin")
	out := fs.String("out", "-", "File to write, - for stdout")
	compression := fs.String("compression", "", "Payload compression: none, gzip, snappy, lz4, zstd (default: from config)")
	raw := fs.Bool("raw", false, "Write only the routing payload without the fragment envelope")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	name := cfg.Codec.Compression
	if *compression != "" {
		name = *compression
	}
	comp, err := fragment.ParseCompression(name)
	if err != nil {
		return err
	}

	input, err := c.readInput(*in)
	if err != nil {
		return err
	}
	f, err := fragment.LoadDescription(bytes.NewReader(input))
	if err != nil {
		return err
	}

	return c.writeOutput(*out, func(w io.Writer) error {
		if *raw {
			sw := stream.NewWriter(w)
			if err := f.Routing.EncodeTo(sw); err != nil {
				return err
			}
			return sw.Flush()
		}
		_, err := fragment.NewEncoder(comp).EncodeTo(w, f)
		return err
	})
}

func (c *cli) runDecode(args []string) error {
	fs := c.flagSet("decode", "decode [options]")
	configPath := fs.String("config", "", "Path to configuration file")
	in := fs.String("in", "-", "Fragment to read, - for stdin")
	format := fs.String("format", "yaml", "Output format: yaml, summary, text")
	raw := fs.Bool("raw", false, "Input is a bare routing payload without the fragment envelope")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	f, err := c.readFragment(*in, *raw, cfg.Codec.MaxPayloadBytes)
	if err != nil {
		return err
	}

	switch *format {
	case "yaml":
		return fragment.DumpDescription(c.stdout, f)
	case "summary":
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(fragment.Summarize(f))
	case "text":
		_, err := fmt.Fprintln(c.stdout, f.Routing.String())
		return err
	default:
		return fmt.Errorf("%w: unknown format %q", errUsage, *format)
	}
}

func (c *cli) runDiff(args []string) error {
	fs := c.flagSet("diff", "diff [options] <a> <b>")
	raw := fs.Bool("raw", false, "Inputs are bare routing payloads without the fragment envelope")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errUsage
	}

	a, err := c.readFragment(fs.Arg(0), *raw, 0)
	if err != nil {
		return fmt.Errorf("%s: %w", fs.Arg(0), err)
	}
	b, err := c.readFragment(fs.Arg(1), *raw, 0)
	if err != nil {
		return fmt.Errorf("%s: %w", fs.Arg(1), err)
	}

	if a.Routing.Equal(b.Routing) {
		fmt.Fprintln(c.stdout, "routings are equal")
		return nil
	}
	fmt.Fprintf(c.stdout, "routings differ\n- %s\n+ %s\n", a.Routing, b.Routing)
	return errRoutingsDiffer
}

func (c *cli) readFragment(path string, raw bool, maxPayloadBytes int) (*fragment.Fragment, error) {
	data, err := c.readInput(path)
	if err != nil {
		return nil, err
	}
	if raw {
		r, err := routing.DecodeFrom(stream.NewReader(data))
		if err != nil {
			return nil, err
		}
		return &fragment.Fragment{Routing: r}, nil
	}
	return fragment.NewDecoder(maxPayloadBytes).Decode(data)
}

func (c *cli) readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(c.stdin)
	}
	return os.ReadFile(path)
}

func (c *cli) writeOutput(path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(c.stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
