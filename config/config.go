// Package config parses the streammux command line into a validated Config:
// repeatable -s/-m stream and mux specs, the optional control API and
// report-file flags, and the log level. CLI flags only — the stream/mux
// model is entirely expressed through repeatable flags, which the standard
// flag package cannot represent, so github.com/spf13/pflag is used instead.
package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/oinkzwurgl/streammux/logger"
)

// Config holds the fully-parsed command line.
type Config struct {
	StreamSpecs []string
	MuxSpecs    []string
	APISpec     string
	AssetsPath  string
	ReportPath  string
	LogLevel    logger.Level

	Help    bool
	Version bool
}

const usage = `
Tool to connect many streams to each other with filtering capabilities.

Usage:

    streammux [flags] -s <stream> -s <stream> -m <mux> [...]

Where:

    -s <stream>          Stream, where <stream> is a stream spec (see below)
    -m <mux>             Mux, where <mux> is a mux spec (see below)
    -r <path>            Report stats to JSON file given by <path>, updated once every second.
                          Use a tmpfs RAM disk, such as /run/user/$UID/streammux.json
    -a <api>             Provide HTTP API (and web UI), see below
    -A <path>            Use web UI assets from path instead of built-in assets
    --log-level <level>  One of debug, info, notice, warning, error (default: notice)
    -h, --help           Print this help and exit
    --version            Print version information and exit

The <mux>es connect the <stream>s to each other. Data is processed on message (frame) level.

A <stream> spec is "<scheme>://<address>[,<option>][,<option>][...]":

    tcpsvr://[host]:port         TCP server
    tcpcli://host:port           TCP client
    serial://device[:baudrate]   Serial port
    ntripcli://[user:pass@]host/mountpoint   NTRIP client
    fileout://path[,S=<seconds>] Write-only file sink, optionally rotated every <seconds>
    filein://path                Read-only file source

Additional stream options:

    ER=on|off    Enable read (input) from stream (irrelevant for WO streams)
    EW=on|off    Enable write (output) to streams (irrelevant for RO streams)
    FR=<filter>  Filter read (input) messages from stream
    FW=<filter>  Filter write (output) messages to stream
    N=<name>     A short and concise name for the stream ([a-zA-Z][a-zA-Z0-9_]{0,9})

A <mux> spec is "<source>=<dest>[,<option>][,<option>][...]". <source> and <dest> identify a
stream by its name or its 1-based declaration order number.

Mux options:

    N=<name>     A short and concise name for the mux
    EF=on|off    Enable forward transmission from <source> to <dest>
    ER=on|off    Enable reverse transmission from <dest> to <source>
    FF=<filter>  Filter forward messages
    FR=<filter>  Filter reverse messages

Filters are in the form "<name>[/<name>][...]". If a filter is set, each message is checked
against each <name> in order; the message passes if its name begins with <name>. The special
<name> "*" matches everything. A <name> prefixed with "!" inverts the match.

The <api> is specified as "[<host>]:<port>[/<prefix>]", where <host> is empty (bind all
interfaces), an IPv4/IPv6 address, or a hostname, <port> is the port number, and <prefix> is an
optional path prefix stripped from incoming requests.

Examples:

    streammux -s serial:///dev/ttyUSB1:38400 -s tcpsvr://:12345 -m 1=2
    streammux -s serial:///dev/ttyUSB1:38400,N=rx -s tcpsvr://:12345,N=svr -m rx=svr,N=rx2svr
    streammux -s serial:///dev/ttyUSB1:38400 -s tcpsvr://:12345 -m 1=2,ER=off
`

// Parse parses args (excluding the program name, i.e. os.Args[1:]) into a
// Config. It returns an error describing the first problem found; on error
// or when Help/Version is set the caller must not start any stream.
func Parse(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("streammux", pflag.ContinueOnError)
	fs.Usage = func() {}

	streams := fs.StringArrayP("stream", "s", nil, "stream spec")
	muxes := fs.StringArrayP("mux", "m", nil, "mux spec")
	api := fs.StringP("api", "a", "", "control API spec")
	assets := fs.StringP("assets", "A", "", "web UI assets path")
	report := fs.StringP("report", "r", "", "status report file path")
	logLevel := fs.String("log-level", "notice", "log level")
	help := fs.BoolP("help", "h", false, "print help and exit")
	version := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := &Config{
		StreamSpecs: *streams,
		MuxSpecs:    *muxes,
		APISpec:     *api,
		AssetsPath:  *assets,
		ReportPath:  *report,
		Help:        *help,
		Version:     *version,
	}

	if cfg.Help || cfg.Version {
		return cfg, nil
	}

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.LogLevel = level

	if err := cfg.checkOptions(fs.Args()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// checkOptions enforces that at least one stream and one mux are given, and
// that no positional arguments are accepted.
func (c *Config) checkOptions(positional []string) error {
	if len(c.StreamSpecs) == 0 {
		return fmt.Errorf("config: at least one -s/--stream is required")
	}
	if len(c.MuxSpecs) == 0 {
		return fmt.Errorf("config: at least one -m/--mux is required")
	}
	if len(positional) != 0 {
		return fmt.Errorf("config: unexpected positional argument %q", positional[0])
	}
	return nil
}

// Usage returns the full help text shown for -h/--help.
func Usage() string { return usage }

var apiRE = regexp.MustCompile(`^(\[[0-9a-fA-F:]+\]|[^:/]*):(\d+)(/.*)?$`)

// ParsedAPISpec is the decomposed "[<host>]:<port>[/<prefix>]" API spec.
type ParsedAPISpec struct {
	Addr   string // host:port suitable for net.Listen / http.Server.Addr
	Prefix string
}

// ParseAPISpec decomposes an API spec. An empty spec returns a zero
// ParsedAPISpec and ok=false (no API configured).
func ParseAPISpec(spec string) (ParsedAPISpec, bool, error) {
	if spec == "" {
		return ParsedAPISpec{}, false, nil
	}
	m := apiRE.FindStringSubmatch(spec)
	if m == nil {
		return ParsedAPISpec{}, false, fmt.Errorf("config: malformed API spec %q", spec)
	}
	host := strings.Trim(m[1], "[]")
	port, err := strconv.Atoi(m[2])
	if err != nil || port < 1 || port > 65535 {
		return ParsedAPISpec{}, false, fmt.Errorf("config: malformed API port in %q", spec)
	}
	return ParsedAPISpec{
		Addr:   net.JoinHostPort(host, strconv.Itoa(port)),
		Prefix: m[3],
	}, true, nil
}
