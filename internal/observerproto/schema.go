package observerproto

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBase = "https://scrollworld.ai/schemas/observer/"

// ErrBadMessage wraps every inbound decode or validation failure.
var ErrBadMessage = errors.New("bad observer message")

// ErrVersion is an ErrBadMessage for a protocol version mismatch.
var ErrVersion = fmt.Errorf("%w: protocol version", ErrBadMessage)

var inboundSchemas = map[string]string{
	TypeSubscribe: "subscribe.schema.json",
	TypeMove:      "move.schema.json",
	TypeWalk:      "walk.schema.json",
}

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func schemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		out := map[string]*jsonschema.Schema{}
		for _, name := range inboundSchemas {
			b, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				compileErr = err
				return
			}
			if err := c.AddResource(schemaBase+name, bytes.NewReader(b)); err != nil {
				compileErr = fmt.Errorf("schema %s: %w", name, err)
				return
			}
		}
		for typ, name := range inboundSchemas {
			s, err := c.Compile(schemaBase + name)
			if err != nil {
				compileErr = fmt.Errorf("compile %s: %w", name, err)
				return
			}
			out[typ] = s
		}
		compiled = out
	})
	return compiled, compileErr
}

// Decode validates an inbound client message against its schema and
// returns one of *SubscribeMsg, *MoveMsg or *WalkMsg.
func Decode(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if env.ProtocolVersion != Version {
		return nil, fmt.Errorf("%w %q (want %s)", ErrVersion, env.ProtocolVersion, Version)
	}
	all, err := schemas()
	if err != nil {
		return nil, err
	}
	s, ok := all[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unexpected type %q", ErrBadMessage, env.Type)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}

	var msg any
	switch env.Type {
	case TypeSubscribe:
		msg = &SubscribeMsg{}
	case TypeMove:
		msg = &MoveMsg{}
	case TypeWalk:
		msg = &WalkMsg{}
	}
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	return msg, nil
}
