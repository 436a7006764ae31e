// Package cliconfig parses the proxy's command-line flags and their
// ZHLOB_* environment-variable mirrors (spec §6). Grounded on
// original_source/src/cli.rs's define_cli! macro expansion: every flag
// has a matching env var, and a handful of flags carry custom syntax
// (listen address, duration, byte size, numeric range) that this
// package's parse* helpers reproduce.
package cliconfig

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v7"
)

// Config holds the resolved settings for the proxy's default run mode.
type Config struct {
	ListenHost string
	ListenPort uint16

	PSLPath string
	DACPath string

	CacheMaxAge uint32 // seconds

	ClearHTML        bool
	Fast304          bool
	SkipAuxResources bool

	ImageScale    float64
	ImageScaleMin uint32
	ImageScaleMax uint32

	RechunkHTMLSize uint64
	TransformLimit  uint64

	LogLevel string

	ExtraStripQueryParams []string

	MetricsListen string
}

// DacgenConfig holds the resolved settings for the "dacgen" subcommand,
// which compiles filter-list inputs into a DAC blocklist file.
type DacgenConfig struct {
	Dump   string
	Inputs []string
	DACOut string
}

// envDefaults mirrors every flag's ZHLOB_<NAME> environment variable. Values
// stay string-typed here (even for numeric/bool flags) so a single env.Parse
// call can seed flag.FlagSet defaults uniformly; the flags themselves do the
// real typed parsing once CLI overrides, if any, are applied.
type envDefaults struct {
	Listen           string `env:"ZHLOB_LISTEN" envDefault:"127.0.0.1:5151"`
	PSL              string `env:"ZHLOB_PSL"`
	DAC              string `env:"ZHLOB_DAC"`
	CacheMaxAge      string `env:"ZHLOB_CACHE_MAX_AGE" envDefault:"2h"`
	ClearHTML        string `env:"ZHLOB_HTML_CLEAN" envDefault:"true"`
	Fast304          string `env:"ZHLOB_FAST_304" envDefault:"true"`
	SkipAuxResources string `env:"ZHLOB_SKIP_AUX_RESOURCES" envDefault:"true"`
	ImageScale       string `env:"ZHLOB_IMAGE_SCALE" envDefault:"0.5"`
	ImageScaleLimit  string `env:"ZHLOB_IMAGE_SCALE_LIMIT" envDefault:"96..384"`
	RechunkHTMLSize  string `env:"ZHLOB_HTML_RECHUNK_SIZE" envDefault:"1360"`
	TransformLimit   string `env:"ZHLOB_TRANSFORM_LIMIT" envDefault:"5m"`
	LogLevel         string `env:"ZHLOB_LOG_LEVEL" envDefault:"info"`
	StripQueryParams string `env:"ZHLOB_STRIP_QUERY_PARAMS"`
	MetricsListen    string `env:"ZHLOB_METRICS_LISTEN"`

	DacgenDump string `env:"ZHLOB_DACGEN_DUMP"`
	DacgenDAC  string `env:"ZHLOB_DACGEN_DAC" envDefault:"blocklist.dac"`
}

// Parse parses args (typically os.Args[1:]) into either a Config or a
// DacgenConfig, depending on whether the first argument is the "dacgen"
// subcommand. Exactly one of the two return values is non-nil on success.
func Parse(args []string) (*Config, *DacgenConfig, error) {
	defaults := envDefaults{}
	if err := env.Parse(&defaults); err != nil {
		return nil, nil, fmt.Errorf("cliconfig: reading environment: %w", err)
	}

	if len(args) > 0 && args[0] == "dacgen" {
		dc, err := parseDacgen(args[1:], defaults)
		return nil, dc, err
	}

	cfg, err := parseRun(args, defaults)
	return cfg, nil, err
}

func parseRun(args []string, defaults envDefaults) (*Config, error) {
	fs := flag.NewFlagSet("zhlob", flag.ContinueOnError)

	listen := fs.String("listen", defaults.Listen, "address to accept MITM'd connections on")
	fs.StringVar(listen, "L", *listen, "shorthand for --listen")
	psl := fs.String("psl", defaults.PSL, "path to a Public Suffix List file")
	fs.StringVar(psl, "p", *psl, "shorthand for --psl")
	dac := fs.String("dac", defaults.DAC, "path to a compiled DAC blocklist file")
	fs.StringVar(dac, "d", *dac, "shorthand for --dac")
	cacheMaxAge := fs.String("cache-max-age", defaults.CacheMaxAge, "upper bound on a rewritten response's cache lifetime")
	clearHTML := fs.Bool("html-clean", defaults.ClearHTML == "true", "minify and de-bloat HTML responses")
	fast304 := fs.Bool("fast-304", defaults.Fast304 == "true", "short-circuit obviously-cached media/video/audio requests to 304")
	skipAux := fs.Bool("skip-aux-resources", defaults.SkipAuxResources == "true", "short-circuit favicon/video/audio requests to 204")
	imageScale := fs.String("image-scale", defaults.ImageScale, "recompression scale factor applied to eligible images, 0 disables")
	imageScaleLimit := fs.String("image-scale-limit", defaults.ImageScaleLimit, "MIN..MAX pixel range an image must fall in to be rescaled")
	rechunk := fs.String("html-rechunk-size", defaults.RechunkHTMLSize, "minimum patched HTML body size that gets streamed in chunks")
	transformLimit := fs.String("transform-limit", defaults.TransformLimit, "largest response body this proxy will buffer for transformation")
	logLevel := fs.String("log-level", defaults.LogLevel, "log level: trace, debug, info, warn, error, or off")
	stripQueryParams := fs.String("strip-query-params", defaults.StripQueryParams, "comma-separated extra query-parameter patterns to strip from rewritten HTML, on top of the built-in tracking list (exact, wildcard *, or ~/~* regexp syntax)")
	metricsListen := fs.String("metrics-listen", defaults.MetricsListen, "address to serve Prometheus metrics on, empty disables the metrics listener")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	host, port, err := parseListenAddress(*listen)
	if err != nil {
		return nil, fmt.Errorf("cliconfig: --listen: %w", err)
	}
	maxAge, err := parseDuration(*cacheMaxAge)
	if err != nil {
		return nil, fmt.Errorf("cliconfig: --cache-max-age: %w", err)
	}
	scale, err := strconv.ParseFloat(*imageScale, 64)
	if err != nil {
		return nil, fmt.Errorf("cliconfig: --image-scale: %w", err)
	}
	scaleMin, scaleMax, err := parseRange(*imageScaleLimit)
	if err != nil {
		return nil, fmt.Errorf("cliconfig: --image-scale-limit: %w", err)
	}
	rechunkSize, err := parseSize(*rechunk)
	if err != nil {
		return nil, fmt.Errorf("cliconfig: --html-rechunk-size: %w", err)
	}
	limit, err := parseSize(*transformLimit)
	if err != nil {
		return nil, fmt.Errorf("cliconfig: --transform-limit: %w", err)
	}

	return &Config{
		ListenHost:            host,
		ListenPort:            port,
		PSLPath:               *psl,
		DACPath:               *dac,
		CacheMaxAge:           maxAge,
		ClearHTML:             *clearHTML,
		Fast304:               *fast304,
		SkipAuxResources:      *skipAux,
		ImageScale:            scale,
		ImageScaleMin:         scaleMin,
		ImageScaleMax:         scaleMax,
		RechunkHTMLSize:       rechunkSize,
		TransformLimit:        limit,
		LogLevel:              *logLevel,
		ExtraStripQueryParams: splitNonEmpty(*stripQueryParams, ","),
		MetricsListen:         strings.TrimSpace(*metricsListen),
	}, nil
}

// splitNonEmpty splits s on sep, trims whitespace from each piece, and
// drops empty pieces, returning nil rather than a single-empty-string slice
// when s is blank.
func splitNonEmpty(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDacgen(args []string, defaults envDefaults) (*DacgenConfig, error) {
	fs := flag.NewFlagSet("zhlob dacgen", flag.ContinueOnError)
	dump := fs.String("dump", defaults.DacgenDump, "optional path to dump a human-readable rule trace to")
	dac := fs.String("dac", defaults.DacgenDAC, "path to write the compiled DAC blocklist to")
	fs.StringVar(dac, "d", *dac, "shorthand for --dac")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &DacgenConfig{
		Dump:   *dump,
		Inputs: fs.Args(),
		DACOut: *dac,
	}, nil
}

// parseListenAddress accepts a bare host, host:port, or http(s)://-prefixed
// address, defaulting the host to 127.0.0.1 and the port to 5151 when
// either half is missing, matching the teacher's parse_listen_address.
func parseListenAddress(input string) (string, uint16, error) {
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "://")

	host, port := s, "5151"
	if idx := strings.LastIndex(s, ":"); idx != -1 {
		host, port = s[:idx], s[idx+1:]
	}
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	if port == "" {
		port = "5151"
	}
	if host == "" {
		host = "127.0.0.1"
	}

	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", port, err)
	}
	return host, uint16(p), nil
}

// parseDuration parses a duration string (e.g. "2h", "90m") into whole
// seconds, matching the teacher's parse_duration.
func parseDuration(s string) (uint32, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", s)
	}
	return uint32(d.Seconds()), nil
}

// parseRange parses a "MIN..MAX" string, defaulting MIN to 1 and MAX to
// math.MaxUint32 when either half is empty, matching the teacher's
// parse_range. An inverted range is rejected.
func parseRange(s string) (uint32, uint32, error) {
	startStr, endStr, ok := strings.Cut(s, "..")
	if !ok {
		return 0, 0, fmt.Errorf("range %q must contain \"..\"", s)
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)
	if startStr == "" {
		startStr = "1"
	}
	if endStr == "" {
		endStr = strconv.FormatUint(1<<32-1, 10)
	}

	start, err := strconv.ParseUint(startStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid MIN %q: %w", startStr, err)
	}
	end, err := strconv.ParseUint(endStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid MAX %q: %w", endStr, err)
	}
	if end < start {
		return 0, 0, fmt.Errorf("MIN (%d) must be <= MAX (%d)", start, end)
	}
	return uint32(start), uint32(end), nil
}

var sizeUnits = map[string]uint64{
	"":  1,
	"b": 1,
	"k": 1024,
	"m": 1024 * 1024,
	"g": 1024 * 1024 * 1024,
	"t": 1024 * 1024 * 1024 * 1024,
}

// parseSize parses a byte-size string such as "1360", "5m", or "512k" into
// a byte count, matching the teacher's parse_size.
func parseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("size must not be empty")
	}

	cut := len(s)
	for cut > 0 && (s[cut-1] < '0' || s[cut-1] > '9') {
		cut--
	}
	numPart, unitPart := s[:cut], strings.ToLower(strings.TrimSpace(s[cut:]))

	multiplier, ok := sizeUnits[unitPart]
	if !ok {
		return 0, fmt.Errorf("unrecognized size unit %q", unitPart)
	}

	n, err := strconv.ParseUint(numPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n * multiplier, nil
}
