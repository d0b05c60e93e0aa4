package cli

import (
	"flag"
	"strings"
)

const versionString = "1.0.0"

type cliOptions struct {
	configPath string
	output     string
	formats    string
	ai         bool
	ui         bool
	watch      bool
	trace      bool
	impact     string
	top        int
	verbose    bool
	version    bool
	args       []string
}

func parseOptions(args []string) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("chunkmap", flag.ContinueOnError)

	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file")
	fs.StringVar(&opts.output, "output", "", "Output base path (overrides [output].path)")
	fs.StringVar(&opts.formats, "format", "", "Comma separated output formats: json, calls, openapi, markdown")
	fs.BoolVar(&opts.ai, "ai", false, "Describe chunks through the configured AI provider")
	fs.BoolVar(&opts.ui, "ui", false, "Open the terminal explorer after the analysis")
	fs.BoolVar(&opts.watch, "watch", false, "Re-run the analysis when bundle files change")
	fs.BoolVar(&opts.trace, "trace", false, "Trace the shortest import chain between two chunks: -trace <dir> <from> <to>")
	fs.StringVar(&opts.impact, "impact", "", "Print the importers of a chunk and exit")
	fs.IntVar(&opts.top, "top", 0, "Print the N most connected chunks and exit")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	opts.args = fs.Args()
	return opts, nil
}

func splitFormats(raw string) []string {
	var out []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}
