package storage

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Documents reads and writes typed values through a Store, validating each
// loaded value against the JSON Schema registered for its key.
type Documents struct {
	store   Store
	schemas map[string]*gojsonschema.Schema
}

// NewDocuments compiles the embedded schema for every persisted key.
func NewDocuments(store Store) (*Documents, error) {
	d := &Documents{
		store:   store,
		schemas: make(map[string]*gojsonschema.Schema, len(Keys)),
	}
	for _, key := range Keys {
		raw, err := schemaFS.ReadFile("schemas/" + key + ".json")
		if err != nil {
			return nil, fmt.Errorf("schema for %s: %w", key, err)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("compiling schema for %s: %w", key, err)
		}
		d.schemas[key] = schema
	}
	return d, nil
}

// Store returns the underlying store.
func (d *Documents) Store() Store {
	return d.store
}

// Validate checks raw JSON against the schema for key. Keys without a
// schema only need to be well-formed JSON.
func (d *Documents) Validate(key string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("%w: %s is not valid JSON", ErrValidation, key)
	}
	schema, ok := d.schemas[key]
	if !ok {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrValidation, key, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s: %s", ErrValidation, key, strings.Join(msgs, "; "))
	}
	return nil
}

// Load decodes the value stored under key into v and reports whether one
// was found. A malformed value is deleted and treated as absent.
func (d *Documents) Load(ctx context.Context, key string, v any) (bool, error) {
	data, err := d.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := d.Validate(key, data); err != nil {
		d.discard(ctx, key, err)
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		d.discard(ctx, key, fmt.Errorf("%w: %v", ErrValidation, err))
		return false, nil
	}
	return true, nil
}

// Save encodes v as JSON and stores it under key.
func (d *Documents) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return d.store.Set(ctx, key, data)
}

func (d *Documents) discard(ctx context.Context, key string, reason error) {
	slog.Warn("discarding malformed stored value", "key", key, "error", reason)
	if err := d.store.Delete(ctx, key); err != nil {
		slog.Error("failed to delete malformed value", "key", key, "error", err)
	}
}
