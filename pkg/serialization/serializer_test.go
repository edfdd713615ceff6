package serialization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// record mimics a checkpoint payload
type record struct {
	Name   string             `json:"name" msgpack:"name"`
	Weight []float64          `json:"weight" msgpack:"weight"`
	Meta   map[string]float64 `json:"meta" msgpack:"meta"`
	Epoch  int                `json:"epoch" msgpack:"epoch"`
}

func sampleRecord() record {
	return record{
		Name:   "encoder.w_local",
		Weight: []float64{0.25, -1.5, 3.125, 0, 0, 0, 0, 0},
		Meta:   map[string]float64{"lr": 0.01, "beta1": 0.9, "beta2": 0.999, "eps": 1e-8},
		Epoch:  49,
	}
}

func TestCodecs(t *testing.T) {
	tests := []struct {
		name  string
		codec Codec
	}{
		{"json", NewJSONCodec()},
		{"json", &JSONCodec{Indent: "  "}},
		{"msgpack", NewMsgPackCodec()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sampleRecord()

			encoded, err := tt.codec.Encode(in)
			require.NoError(t, err)
			assert.NotEmpty(t, encoded)

			var out record
			require.NoError(t, tt.codec.Decode(encoded, &out))
			assert.Equal(t, in, out)
			assert.Equal(t, tt.name, tt.codec.Name())
		})
	}
}

func TestSerializer_WithCompression(t *testing.T) {
	tests := []struct {
		name        string
		compression CompressionType
		wantName    string
	}{
		{"gzip compression", CompressionGzip, "msgpack+gzip"},
		{"zstd compression", CompressionZstd, "msgpack+zstd"},
		{"no compression", CompressionNone, "msgpack"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serializer := NewSerializer(SerializationConfig{
				Codec:       NewMsgPackCodec(),
				Compression: tt.compression,
			})
			assert.Equal(t, tt.wantName, serializer.Name())

			in := sampleRecord()
			serialized, err := serializer.Serialize(in)
			require.NoError(t, err)

			var out record
			require.NoError(t, serializer.Deserialize(serialized, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestSerializer_Deterministic(t *testing.T) {
	for _, c := range []CompressionType{CompressionNone, CompressionGzip, CompressionZstd} {
		t.Run(string(c), func(t *testing.T) {
			serializer := NewSerializer(SerializationConfig{Compression: c})

			first, err := serializer.Serialize(sampleRecord())
			require.NoError(t, err)
			for i := 0; i < 5; i++ {
				again, err := serializer.Serialize(sampleRecord())
				require.NoError(t, err)
				assert.Equal(t, first, again)
			}
		})
	}
}

func TestSerializer_Defaults(t *testing.T) {
	assert.Equal(t, "msgpack+zstd", DefaultSerializer().Name())
	assert.Equal(t, "json", ReportSerializer().Name())
	assert.Equal(t, "msgpack", NewSerializer(SerializationConfig{}).Name())

	data, err := ReportSerializer().Serialize(map[string]float64{"micro_f1": 0.5})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"micro_f1\": 0.5\n}", string(data))
}

func TestSerializer_CorruptData(t *testing.T) {
	var out record

	err := DefaultSerializer().Deserialize([]byte("not zstd"), &out)
	assert.ErrorContains(t, err, "decompression failed")

	plain := NewSerializer(SerializationConfig{Codec: NewJSONCodec()})
	err = plain.Deserialize([]byte("{broken"), &out)
	assert.ErrorContains(t, err, "codec decoding failed")
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    CompressionType
		wantErr bool
	}{
		{"", CompressionZstd, false},
		{"zstd", CompressionZstd, false},
		{"GZIP", CompressionGzip, false},
		{" none ", CompressionNone, false},
		{"lz4", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCompression(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownCompression)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func BenchmarkSerializer_Default(b *testing.B) {
	serializer := DefaultSerializer()
	in := sampleRecord()
	in.Weight = make([]float64, 4096)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		serialized, _ := serializer.Serialize(in)
		var out record
		_ = serializer.Deserialize(serialized, &out)
	}
}
