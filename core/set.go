package core

import "fmt"

// Collection holds the fully-constructed Streams and Muxes for one run, in
// declaration order (the order -s/-m flags were given), which is also the
// order FindStream/FindMux's 1-based numeric indices address.
type Collection struct {
	Streams []*Stream
	Muxes   []*Mux
}

// Build parses streamSpecs and muxSpecs (in CLI-flag order) into a validated
// Collection. On any configuration error it returns a *ValidationError
// describing the first problem found; the caller must not start any stream.
func Build(streamSpecs, muxSpecs []string) (*Collection, error) {
	c := &Collection{}

	for i, spec := range streamSpecs {
		s, err := BuildStream(spec, i+1)
		if err != nil {
			return nil, err
		}
		if c.findStreamByName(s.Name) != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("duplicate stream name %q", s.Name)}
		}
		c.Streams = append(c.Streams, s)
	}

	for i, spec := range muxSpecs {
		m, err := BuildMux(spec, i+1, func(nameOrIndex string) *Stream {
			return c.FindStream(nameOrIndex)
		})
		if err != nil {
			return nil, err
		}
		if c.findStreamByName(m.Name) != nil || c.findMuxByName(m.Name) != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("duplicate mux or stream name %q", m.Name)}
		}
		c.Muxes = append(c.Muxes, m)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collection) validate() error {
	if len(c.Streams) == 0 {
		return &ValidationError{Reason: "at least one stream is required"}
	}
	if len(c.Muxes) == 0 {
		return &ValidationError{Reason: "at least one mux is required"}
	}

	used := make(map[*Stream]bool, len(c.Streams))
	for _, m := range c.Muxes {
		used[m.Src] = true
		used[m.Dst] = true
	}
	for _, s := range c.Streams {
		if !used[s] {
			return &ValidationError{Reason: fmt.Sprintf("unused stream %q", s.Name)}
		}
	}
	return nil
}

func (c *Collection) findStreamByName(name string) *Stream {
	for _, s := range c.Streams {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (c *Collection) findMuxByName(name string) *Mux {
	for _, m := range c.Muxes {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// FindStream resolves a Stream by name or 1-based declaration-order index.
func (c *Collection) FindStream(nameOrIndex string) *Stream {
	if s := c.findStreamByName(nameOrIndex); s != nil {
		return s
	}
	if nr, ok := indexOrName(nameOrIndex, len(c.Streams)); ok {
		return c.Streams[nr-1]
	}
	return nil
}

// FindMux resolves a Mux by name or 1-based declaration-order index.
func (c *Collection) FindMux(nameOrIndex string) *Mux {
	if m := c.findMuxByName(nameOrIndex); m != nil {
		return m
	}
	if nr, ok := indexOrName(nameOrIndex, len(c.Muxes)); ok {
		return c.Muxes[nr-1]
	}
	return nil
}
