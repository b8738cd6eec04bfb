// Package serialization encodes workflow documents and run records for
// storage. Every payload carries a small header naming its codec and
// compression, so a store can read rows written under an older setting.
// PRINCIPLES:
// - KISS: Simple interface with multiple codec implementations
// - DRY: Shared by the sqlite and postgres stores
// - SOLID: Interface segregation for different codecs
package serialization

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrInvalidEnvelope    = errors.New("invalid serialized payload")
	ErrUnsupportedVersion = errors.New("unsupported payload version")
	ErrUnknownCodec       = errors.New("unknown codec")
	ErrUnknownCompression = errors.New("unknown compression")
	ErrMissingKey         = errors.New("payload is encrypted but no key is configured")
	ErrInvalidKeyLength   = errors.New("encryption key must be 16, 24 or 32 bytes")
	ErrInvalidCiphertext  = errors.New("invalid ciphertext size")
)

// Codec interface for serialization
// PRINCIPLES:
// - ISP: Simple interface with ≤5 methods
// - SRP: Single responsibility for serialization
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
	Name() string
}

// CompressionType represents compression algorithms
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
	CompressionZstd CompressionType = "zstd"
)

// ParseCompression maps a configuration string to a CompressionType. The
// empty string means none.
func ParseCompression(s string) (CompressionType, error) {
	switch CompressionType(s) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionGzip, CompressionZstd:
		return CompressionType(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCompression, s)
}

// Header layout: magic(2) version(1) codec(1) compression(1) flags(1).
const (
	headerSize     = 6
	formatVersion  = 1
	flagEncrypted  = 1 << 0
	codecIDJSON    = 1
	codecIDMsgPack = 2
)

var magic = [2]byte{'F', 'C'}

var compressionIDs = map[CompressionType]byte{
	CompressionNone: 0,
	CompressionGzip: 1,
	CompressionZstd: 2,
}

// SerializationConfig holds serialization settings
type SerializationConfig struct {
	Codec       Codec
	Compression CompressionType
	EncryptKey  []byte // AES-128/192/256 key
}

// Validate checks the configuration.
func (c SerializationConfig) Validate() error {
	if c.Codec == nil {
		return fmt.Errorf("%w: nil", ErrUnknownCodec)
	}
	if _, ok := codecID(c.Codec); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCodec, c.Codec.Name())
	}
	if _, ok := compressionIDs[c.Compression]; !ok && c.Compression != "" {
		return fmt.Errorf("%w: %q", ErrUnknownCompression, c.Compression)
	}
	switch len(c.EncryptKey) {
	case 0, 16, 24, 32:
		return nil
	}
	return ErrInvalidKeyLength
}

// Serializer provides complete serialization with compression and encryption
// PRINCIPLES:
// - KISS: Simple interface hiding complex operations
// - SRP: Single responsibility for complete serialization pipeline
type Serializer struct {
	config SerializationConfig
}

// NewSerializer creates a new serializer with configuration. An empty
// Compression means none.
func NewSerializer(config SerializationConfig) *Serializer {
	if config.Compression == "" {
		config.Compression = CompressionNone
	}
	return &Serializer{config: config}
}

// Config returns the write-side configuration.
func (s *Serializer) Config() SerializationConfig { return s.config }

// Serialize encodes, compresses, and encrypts data, then prefixes the header
func (s *Serializer) Serialize(v interface{}) ([]byte, error) {
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	cid, _ := codecID(s.config.Codec)

	data, err := s.config.Codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("codec encoding failed: %w", err)
	}

	data, err = compress(s.config.Compression, data)
	if err != nil {
		return nil, fmt.Errorf("compression failed: %w", err)
	}

	var flags byte
	if len(s.config.EncryptKey) > 0 {
		data, err = encrypt(s.config.EncryptKey, data)
		if err != nil {
			return nil, fmt.Errorf("encryption failed: %w", err)
		}
		flags |= flagEncrypted
	}

	out := make([]byte, 0, headerSize+len(data))
	out = append(out, magic[0], magic[1], formatVersion, cid, compressionIDs[s.config.Compression], flags)
	return append(out, data...), nil
}

// Deserialize reads the header, then decrypts, decompresses, and decodes.
// The codec and compression come from the header, not from the config.
func (s *Serializer) Deserialize(data []byte, v interface{}) error {
	if len(data) < headerSize || data[0] != magic[0] || data[1] != magic[1] {
		return ErrInvalidEnvelope
	}
	if data[2] != formatVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, data[2])
	}
	codec, ok := codecByID(data[3])
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownCodec, data[3])
	}
	compression, ok := compressionByID(data[4])
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownCompression, data[4])
	}
	flags, payload := data[5], data[headerSize:]

	var err error
	if flags&flagEncrypted != 0 {
		if len(s.config.EncryptKey) == 0 {
			return ErrMissingKey
		}
		payload, err = decrypt(s.config.EncryptKey, payload)
		if err != nil {
			return fmt.Errorf("decryption failed: %w", err)
		}
	}

	payload, err = decompress(compression, payload)
	if err != nil {
		return fmt.Errorf("decompression failed: %w", err)
	}

	if err := codec.Decode(payload, v); err != nil {
		return fmt.Errorf("codec decoding failed: %w", err)
	}
	return nil
}

func codecID(c Codec) (byte, bool) {
	switch c.Name() {
	case "json":
		return codecIDJSON, true
	case "msgpack":
		return codecIDMsgPack, true
	}
	return 0, false
}

func codecByID(id byte) (Codec, bool) {
	switch id {
	case codecIDJSON:
		return NewJSONCodec(), true
	case codecIDMsgPack:
		return NewMsgPackCodec(), true
	}
	return nil, false
}

func compressionByID(id byte) (CompressionType, bool) {
	for c, cid := range compressionIDs {
		if cid == id {
			return c, true
		}
	}
	return "", false
}

// compress applies compression based on configuration
func compress(c CompressionType, data []byte) ([]byte, error) {
	switch c {
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		z, err := zstdCoders()
		if err != nil {
			return nil, err
		}
		return z.enc.EncodeAll(data, nil), nil
	default:
		return data, nil
	}
}

// decompress removes compression based on configuration
func decompress(c CompressionType, data []byte) ([]byte, error) {
	switch c {
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case CompressionZstd:
		z, err := zstdCoders()
		if err != nil {
			return nil, err
		}
		return z.dec.DecodeAll(data, nil)
	default:
		return data, nil
	}
}

type zstdPair struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// zstd coders are safe for concurrent EncodeAll/DecodeAll.
var zstdCoders = sync.OnceValues(func() (zstdPair, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return zstdPair{}, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return zstdPair{}, err
	}
	return zstdPair{enc: enc, dec: dec}, nil
})

// encrypt encrypts data using AES-GCM, nonce first
func encrypt(key, data []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, data, nil), nil
}

// decrypt decrypts data using AES-GCM
func decrypt(key, data []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrInvalidCiphertext
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// JSONCodec implements JSON serialization
type JSONCodec struct{}

func (c *JSONCodec) Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Name() string {
	return "json"
}

// MsgPackCodec implements MessagePack serialization. Struct fields are
// named by their json tags so domain types need no msgpack tags.
type MsgPackCodec struct{}

func (c *MsgPackCodec) Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *MsgPackCodec) Decode(data []byte, v interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

func (c *MsgPackCodec) Name() string {
	return "msgpack"
}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() Codec {
	return &JSONCodec{}
}

// NewMsgPackCodec creates a new MessagePack codec
func NewMsgPackCodec() Codec {
	return &MsgPackCodec{}
}

// CodecByName returns the codec called name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return NewJSONCodec(), nil
	case "msgpack":
		return NewMsgPackCodec(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// DefaultSerializer is msgpack with zstd. Used for run records.
func DefaultSerializer() *Serializer {
	return NewSerializer(SerializationConfig{
		Codec:       NewMsgPackCodec(),
		Compression: CompressionZstd,
	})
}

// DocumentSerializer is JSON with zstd. Documents keep JSON so node config
// numbers decode as float64, the same as the interchange format.
func DocumentSerializer(key []byte) *Serializer {
	return NewSerializer(SerializationConfig{
		Codec:       NewJSONCodec(),
		Compression: CompressionZstd,
		EncryptKey:  key,
	})
}
