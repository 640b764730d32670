// Package codec encodes roster snapshots for every persistence backend and
// validates stored documents against the embedded JSON Schema before decoding.
package codec

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"roster/pkg/domain"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "https://roster.local/schemas/snapshot.schema.json"

//go:embed snapshot.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func snapshotSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add snapshot schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Encode renders snap as indented JSON.
func Encode(snap domain.Snapshot) ([]byte, error) {
	return domain.MarshalSnapshot(snap)
}

// Decode validates data against the snapshot schema and decodes it.
func Decode(data []byte) (domain.Snapshot, error) {
	if err := Validate(data); err != nil {
		return domain.Snapshot{}, err
	}
	return domain.UnmarshalSnapshot(data)
}

// Validate checks data against the snapshot schema.
func Validate(data []byte) error {
	s, err := snapshotSchema()
	if err != nil {
		return domain.WrapError(domain.CodeDeserialization, err, "load snapshot schema")
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.WrapError(domain.CodeDeserialization, err, "parse snapshot")
	}
	if err := s.Validate(doc); err != nil {
		return domain.WrapError(domain.CodeDeserialization, err, "snapshot does not match schema")
	}
	return nil
}

// Compress wraps data in a zstd frame.
func Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, domain.WrapError(domain.CodeSerialization, err, "zstd encoder")
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, domain.WrapError(domain.CodeDeserialization, err, "zstd decoder")
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, domain.WrapError(domain.CodeDeserialization, err, "zstd decode")
	}
	return out, nil
}
