package snapshot

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.json
var schemaFS embed.FS

// schemas holds the compiled snapshot and alert schemas. They are
// compiled once on first use and shared read-only afterwards.
var schemas struct {
	once     sync.Once
	snapshot *jsonschema.Schema
	alerts   *jsonschema.Schema
	err      error
}

func loadSchemas() error {
	schemas.once.Do(func() {
		schemas.snapshot, schemas.err = compileSchema("snapshot.schema.json")
		if schemas.err != nil {
			return
		}
		schemas.alerts, schemas.err = compileSchema("alerts.schema.json")
	})
	return schemas.err
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile("schema/" + name)
	if err != nil {
		return nil, fmt.Errorf("read embedded schema %s: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

// validate checks raw against schema. The payload is decoded generically
// first so that type mismatches (a string where a number belongs) are
// reported by the schema rather than by the typed decoder.
func validate(schema *jsonschema.Schema, raw []byte) error {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	return schema.Validate(payload)
}
