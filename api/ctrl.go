package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oinkzwurgl/streammux/core"
)

// ctrlRequest is the raw wire shape of a POST /ctrl body or a WebSocket
// {"api":"ctrl","data":[...]} message: ["<name_or_number>", A, B] where A
// and B are true, false, or null.
type ctrlRequest []json.RawMessage

// ctrlResponse echoes the effective post-mutation state:
// {"api":"ctrl","data":[name, ena_read_or_fwd, ena_write_or_rev]}.
type ctrlResponse struct {
	Api  string        `json:"api"`
	Data []interface{} `json:"data"`
}

var errMalformedCtrl = errors.New("api: malformed ctrl request")

// applyCtrl resolves the target (by name or 1-based declaration index),
// applies the non-null flags, and returns the response payload. It mutates
// nothing on a malformed request.
func applyCtrl(coll *core.Collection, raw []byte) (ctrlResponse, error) {
	var req ctrlRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return ctrlResponse{}, fmt.Errorf("%w: %v", errMalformedCtrl, err)
	}
	if len(req) != 3 {
		return ctrlResponse{}, fmt.Errorf("%w: want array of 3, got %d", errMalformedCtrl, len(req))
	}

	var name string
	if err := json.Unmarshal(req[0], &name); err != nil {
		return ctrlResponse{}, fmt.Errorf("%w: target must be a string", errMalformedCtrl)
	}
	a, err := parseTriBool(req[1])
	if err != nil {
		return ctrlResponse{}, err
	}
	b, err := parseTriBool(req[2])
	if err != nil {
		return ctrlResponse{}, err
	}

	if s := coll.FindStream(name); s != nil {
		if a != nil {
			s.SetEnaRead(*a)
		}
		if b != nil {
			s.SetEnaWrite(*b)
		}
		return ctrlResponse{Api: "ctrl", Data: []interface{}{s.Name, s.EnaRead(), s.EnaWrite()}}, nil
	}
	if m := coll.FindMux(name); m != nil {
		if a != nil {
			m.SetEnaFwd(*a)
		}
		if b != nil {
			m.SetEnaRev(*b)
		}
		return ctrlResponse{Api: "ctrl", Data: []interface{}{m.Name, m.EnaFwd(), m.EnaRev()}}, nil
	}
	return ctrlResponse{}, fmt.Errorf("%w: unresolved target %q", errMalformedCtrl, name)
}

// parseTriBool decodes a json.RawMessage that must be true, false, or null.
func parseTriBool(raw json.RawMessage) (*bool, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedCtrl, err)
	}
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return &t, nil
	default:
		return nil, fmt.Errorf("%w: expected bool or null, got %T", errMalformedCtrl, v)
	}
}
