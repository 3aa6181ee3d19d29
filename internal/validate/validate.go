package validate

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const mountSchemaURL = "mem://schema/mount.schema.json"

//go:embed schema/mount.schema.json
var mountSchema []byte

var (
	once    sync.Once
	schema  *jsonschema.Schema
	loadErr error
)

func load() {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(mountSchemaURL, bytes.NewReader(mountSchema)); err != nil {
		loadErr = err
		return
	}
	s, err := c.Compile(mountSchemaURL)
	if err != nil {
		loadErr = err
		return
	}
	schema = s
}

// MountRequest is the body of POST /viewers and PUT /viewers/{id}.
type MountRequest struct {
	Location string `json:"location"`
}

// DecodeMount validates raw against the mount schema and decodes it.
func DecodeMount(raw []byte) (MountRequest, error) {
	once.Do(load)
	if loadErr != nil {
		return MountRequest{}, loadErr
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return MountRequest{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return MountRequest{}, err
	}
	var req MountRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return MountRequest{}, err
	}
	return req, nil
}
