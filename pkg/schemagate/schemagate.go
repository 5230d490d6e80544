// Package schemagate pre-filters Edit Packet v1 and Patch v1 wire JSON
// against their JSON Schemas before core parsing. Schema rejection is a
// shape failure, distinct from semantic validation failure.
package schemagate

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaBundleVersion is the version of the embedded schema bundle. Bump it
// when schema constraints change, even if the wire `v` stays the same.
const SchemaBundleVersion = 1

//go:embed schemas/editpacket.v1.schema.json schemas/patch.v1.schema.json
var schemaFS embed.FS

const (
	editPacketSchemaURL = "https://bdir-protocol.dev/schemas/editpacket.v1.schema.json"
	patchSchemaURL      = "https://bdir-protocol.dev/schemas/patch.v1.schema.json"
)

var compile = sync.OnceValues(func() (map[string]*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	files := map[string]string{
		editPacketSchemaURL: "schemas/editpacket.v1.schema.json",
		patchSchemaURL:      "schemas/patch.v1.schema.json",
	}

	out := make(map[string]*jsonschema.Schema, len(files))
	for url, path := range files {
		raw, err := schemaFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("schemagate: read %s: %w", path, err)
		}
		if err := c.AddResource(url, strings.NewReader(string(raw))); err != nil {
			return nil, fmt.Errorf("schemagate: load %s: %w", path, err)
		}
		schema, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("schemagate: compile %s: %w", path, err)
		}
		out[url] = schema
	}
	return out, nil
})

func check(url, label string, data []byte) error {
	schemas, err := compile()
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var inst any
	if err := dec.Decode(&inst); err != nil {
		return fmt.Errorf("%s: invalid JSON: %w", label, err)
	}

	if err := schemas[url].Validate(inst); err != nil {
		return fmt.Errorf("%s schema validation failed: %w", label, err)
	}
	return nil
}

// CheckEditPacket validates raw JSON against the Edit Packet v1 schema.
func CheckEditPacket(data []byte) error {
	return check(editPacketSchemaURL, "edit packet", data)
}

// CheckPatch validates raw JSON against the Patch v1 schema.
func CheckPatch(data []byte) error {
	return check(patchSchemaURL, "patch", data)
}
