package store

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zstd"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalidItem indicates a stored payload could not be decoded.
var ErrInvalidItem = errors.New("invalid stored item")

// Codec converts items to and from stored payloads.
type Codec[T any] interface {
	Name() string
	Encode(item T) ([]byte, error)
	Decode(data []byte) (T, error)
}

type jsonCodec[T any] struct{}

// JSON returns a codec storing items as JSON documents.
func JSON[T any]() Codec[T] {
	return jsonCodec[T]{}
}

func (jsonCodec[T]) Name() string {
	return "json"
}

func (jsonCodec[T]) Encode(item T) ([]byte, error) {
	return json.Marshal(item)
}

func (jsonCodec[T]) Decode(data []byte) (T, error) {
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return item, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	return item, nil
}

type zstdCodec[T any] struct {
	inner   Codec[T]
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Zstd wraps inner and compresses every payload with Zstandard.
// Large items shrink considerably; tiny ones may grow by a few bytes.
func Zstd[T any](inner Codec[T]) Codec[T] {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Sprintf("store: create zstd encoder: %v", err))
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("store: create zstd decoder: %v", err))
	}
	return &zstdCodec[T]{inner: inner, encoder: encoder, decoder: decoder}
}

func (z *zstdCodec[T]) Name() string {
	return z.inner.Name() + "+zstd"
}

func (z *zstdCodec[T]) Encode(item T) ([]byte, error) {
	raw, err := z.inner.Encode(item)
	if err != nil {
		return nil, err
	}
	return z.encoder.EncodeAll(raw, nil), nil
}

func (z *zstdCodec[T]) Decode(data []byte) (T, error) {
	raw, err := z.decoder.DecodeAll(data, nil)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	return z.inner.Decode(raw)
}

func encodeAll[T any](codec Codec[T], items []T) ([][]byte, int, error) {
	payloads := make([][]byte, len(items))
	size := 0
	for i, item := range items {
		data, err := codec.Encode(item)
		if err != nil {
			return nil, 0, fmt.Errorf("encode item %d: %w", i, err)
		}
		payloads[i] = data
		size += len(data)
	}
	return payloads, size, nil
}
