// Package schemavalidation checks observer JSON documents against the
// embedded JSON Schemas before they are decoded.
package schemavalidation

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const baseURL = "mem://observer/"

// ErrInvalid wraps every schema violation.
var ErrInvalid = errors.New("schemavalidation: document does not match schema")

// Kind names a document type.
type Kind string

const (
	KindInput    Kind = "input"
	KindWindows  Kind = "windows"
	KindArtifact Kind = "artifact"
	KindEntries  Kind = "entries"
	KindRequest  Kind = "request"
)

// Kinds lists every document type with a schema.
func Kinds() []Kind {
	return []Kind{KindInput, KindWindows, KindArtifact, KindEntries, KindRequest}
}

var (
	compileOnce sync.Once
	compiled    map[Kind]*jsonschema.Schema
	compileErr  error
)

func schemas() (map[Kind]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		names, err := fs.Glob(schemaFS, "schemas/*.schema.json")
		if err != nil {
			compileErr = fmt.Errorf("list schemas: %w", err)
			return
		}
		for _, name := range names {
			data, err := schemaFS.ReadFile(name)
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			url := baseURL + name[len("schemas/"):]
			if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
				compileErr = fmt.Errorf("add schema resource %s: %w", name, err)
				return
			}
		}

		out := make(map[Kind]*jsonschema.Schema)
		for _, kind := range Kinds() {
			s, err := compiler.Compile(baseURL + string(kind) + ".schema.json")
			if err != nil {
				compileErr = fmt.Errorf("compile %s schema: %w", kind, err)
				return
			}
			out[kind] = s
		}
		compiled = out
	})
	return compiled, compileErr
}

// Check reports whether every embedded schema compiles.
func Check() error {
	_, err := schemas()
	return err
}

// Validate checks data against the schema for kind.
func Validate(kind Kind, data []byte) error {
	all, err := schemas()
	if err != nil {
		return err
	}
	schema, ok := all[kind]
	if !ok {
		return fmt.Errorf("schemavalidation: unknown kind %q", kind)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, kind, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, kind, err)
	}
	return nil
}

// Decode validates data and unmarshals it into v.
func Decode(kind Kind, data []byte, v any) error {
	if err := Validate(kind, data); err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}
