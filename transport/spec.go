package transport

import (
	"strconv"
	"strings"
)

// options is the parsed comma-separated "K=V" option list trailing a
// transport URL. Keys are case-sensitive, matching the spec's single-letter
// convention (N=, S=, ER=, EW=, FR=, FW=, ...).
type options map[string]string

func parseOptions(rest string) options {
	opts := options{}
	if rest == "" {
		return opts
	}
	for _, tok := range strings.Split(rest, ",") {
		if tok == "" {
			continue
		}
		k, v, ok := strings.Cut(tok, "=")
		if !ok {
			opts[k] = ""
			continue
		}
		opts[k] = v
	}
	return opts
}

func (o options) get(key, def string) string {
	if v, ok := o[key]; ok {
		return v
	}
	return def
}

func (o options) getInt(key string, def int) int {
	v, ok := o[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// FromSpec constructs a Stream endpoint from a stream spec of the form
// "<scheme>://<address>[,K=V]...". The scheme selects the concrete
// implementation; unrecognised options are ignored by the endpoint itself
// (the core-level options ER=/EW=/FR=/FW=/N= are consumed by the caller,
// see core.BuildStream, before the remainder reaches FromSpec).
func FromSpec(spec string) (Stream, error) {
	scheme, rest, ok := strings.Cut(spec, "://")
	if !ok {
		return nil, &ParseError{Spec: spec, Reason: "missing \"://\""}
	}
	addr, optStr, _ := strings.Cut(rest, ",")
	opts := parseOptions(optStr)

	switch scheme {
	case "tcpsvr":
		return newTCPServer(addr, opts)
	case "tcpcli":
		return newTCPClient(addr, opts)
	case "fileout":
		return newFileOut(addr, opts)
	case "filein":
		return newFileIn(addr, opts)
	case "ntripcli":
		return newNtripClient(addr, opts)
	case "serial":
		return newSerial(addr, opts)
	default:
		return nil, &ParseError{Spec: spec, Reason: "unknown scheme " + strconv.Quote(scheme)}
	}
}
