package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oinkzwurgl/streammux/filter"
	"github.com/oinkzwurgl/streammux/transport"
)

// consumeOption extracts "key=value" from a comma-separated option list,
// removing it from the list, and returns (value, found, remaining). A bare
// "key" with no "=" yields value "" and found=true.
func consumeOption(opts []string, key string) (string, bool, []string) {
	remaining := opts[:0:0]
	value, found := "", false
	for _, tok := range opts {
		k, v, hasEq := strings.Cut(tok, "=")
		if k == key {
			found = true
			if hasEq {
				value = v
			}
			continue
		}
		remaining = append(remaining, tok)
	}
	return value, found, remaining
}

func parseBool(s string, def bool) (bool, bool) {
	if s == "" {
		return def, true
	}
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, true
	case "off", "false", "0", "no":
		return false, true
	default:
		return false, false
	}
}

// BuildStream parses one "-s" spec into a Stream. index is the stream's
// 1-based position among all -s flags, used only for default naming and
// error messages.
func BuildStream(spec string, index int) (*Stream, error) {
	parts := strings.Split(spec, ",")
	if len(parts) == 0 || !strings.Contains(parts[0], "://") {
		return nil, &ValidationError{Reason: fmt.Sprintf("stream %d: missing transport URL in %q", index, spec)}
	}
	url, opts := parts[0], parts[1:]

	erStr, _, opts := consumeOption(opts, "ER")
	enaRead, ok := parseBool(erStr, true)
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("stream %d: bad ER option", index)}
	}
	ewStr, _, opts := consumeOption(opts, "EW")
	enaWrite, ok := parseBool(ewStr, true)
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("stream %d: bad EW option", index)}
	}
	frStr, _, opts := consumeOption(opts, "FR")
	fr, err := filter.Parse(frStr)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("stream %d: bad FR option: %v", index, err)}
	}
	fwStr, _, opts := consumeOption(opts, "FW")
	fw, err := filter.Parse(fwStr)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("stream %d: bad FW option: %v", index, err)}
	}
	name, hasName, opts := consumeOption(opts, "N")

	rest := url
	if len(opts) > 0 {
		rest += "," + strings.Join(opts, ",")
	}
	t, err := transport.FromSpec(rest)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("stream %d: %v", index, err)}
	}

	if !hasName || name == "" {
		name = fmt.Sprintf("%s%d", strings.ToLower(t.GetType().String()), index)
	}
	if !nameRE.MatchString(name) {
		return nil, &ValidationError{Reason: fmt.Sprintf("stream %d: bad name %q", index, name)}
	}

	s := NewStream(name, t, fr, fw)
	s.SetEnaRead(enaRead)
	s.SetEnaWrite(enaWrite)
	return s, nil
}

// BuildMux parses one "-m" spec (after the streams it references have
// already been constructed). index is the mux's 1-based position among all
// -m flags.
func BuildMux(spec string, index int, resolve func(nameOrIndex string) *Stream) (*Mux, error) {
	parts := strings.Split(spec, ",")
	if len(parts) == 0 || !strings.Contains(parts[0], "=") {
		return nil, &ValidationError{Reason: fmt.Sprintf("mux %d: missing src=dst in %q", index, spec)}
	}
	endpoints, opts := parts[0], parts[1:]

	src, dst, ok := strings.Cut(endpoints, "=")
	if !ok || src == "" || dst == "" {
		return nil, &ValidationError{Reason: fmt.Sprintf("mux %d: bad src=dst %q", index, endpoints)}
	}

	name, hasName, opts := consumeOption(opts, "N")
	if !hasName || name == "" {
		name = fmt.Sprintf("mux%d", index)
	}
	if !nameRE.MatchString(name) {
		return nil, &ValidationError{Reason: fmt.Sprintf("mux %d: bad name %q", index, name)}
	}

	efStr, _, opts := consumeOption(opts, "EF")
	enaFwd, ok := parseBool(efStr, true)
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("mux %d: bad EF option", index)}
	}
	erStr, _, opts := consumeOption(opts, "ER")
	enaRev, ok := parseBool(erStr, true)
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("mux %d: bad ER option", index)}
	}
	ffStr, _, opts := consumeOption(opts, "FF")
	ff, err := filter.Parse(ffStr)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("mux %d: bad FF option: %v", index, err)}
	}
	frStr, _, _ := consumeOption(opts, "FR")
	fr, err := filter.Parse(frStr)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("mux %d: bad FR option: %v", index, err)}
	}

	srcStream := resolve(src)
	if srcStream == nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("mux %d: could not find src stream %q", index, src)}
	}
	dstStream := resolve(dst)
	if dstStream == nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("mux %d: could not find dst stream %q", index, dst)}
	}
	if srcStream == dstStream {
		return nil, &ValidationError{Reason: fmt.Sprintf("mux %d: src and dst are the same (%q)", index, src)}
	}

	m := NewMux(name, srcStream, dstStream, ff, fr)
	m.SetEnaFwd(enaFwd)
	m.SetEnaRev(enaRev)
	return m, nil
}

// indexOrName resolves a 1-based numeric index against n, returning true
// only for 1 <= nr <= n.
func indexOrName(s string, n int) (int, bool) {
	nr, err := strconv.Atoi(s)
	if err != nil || nr < 1 || nr > n {
		return 0, false
	}
	return nr, true
}
