package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gclflow/gclflow/internal/core/graph"
	"github.com/gclflow/gclflow/pkg/serialization"
)

// LoadFile reads a graph file. The format follows the extension:
// ".json" or ".msgpack", optionally followed by ".gz" or ".zst".
// A graph without a name is named after the file.
func LoadFile(path string) (*graph.Graph, error) {
	serializer, base, err := serializerFor(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var g graph.Graph
	if err := serializer.Deserialize(data, &g); err != nil {
		return nil, fmt.Errorf("failed to decode dataset %s: %w", path, err)
	}
	if g.Name == "" {
		g.Name = base
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset %s: %w", path, err)
	}
	return &g, nil
}

// SaveFile writes g in the format implied by path.
func SaveFile(path string, g *graph.Graph) error {
	serializer, _, err := serializerFor(path)
	if err != nil {
		return err
	}
	data, err := serializer.Serialize(g)
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func serializerFor(path string) (*serialization.Serializer, string, error) {
	name := filepath.Base(path)
	compression := serialization.CompressionNone
	switch {
	case strings.HasSuffix(name, ".gz"):
		compression = serialization.CompressionGzip
		name = strings.TrimSuffix(name, ".gz")
	case strings.HasSuffix(name, ".zst"):
		compression = serialization.CompressionZstd
		name = strings.TrimSuffix(name, ".zst")
	}

	var codec serialization.Codec
	switch ext := filepath.Ext(name); ext {
	case ".json":
		codec = serialization.NewJSONCodec()
	case ".msgpack", ".mpk":
		codec = serialization.NewMsgPackCodec()
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}

	s := serialization.NewSerializer(serialization.SerializationConfig{Codec: codec, Compression: compression})
	return s, strings.TrimSuffix(name, filepath.Ext(name)), nil
}
