// Package json pins the encoder used for stored values and wire frames.
package json

import jsoniter "github.com/json-iterator/go"

var (
	JSON = jsoniter.ConfigCompatibleWithStandardLibrary

	Marshal       = JSON.Marshal
	MarshalIndent = JSON.MarshalIndent
	Unmarshal     = JSON.Unmarshal
	NewDecoder    = JSON.NewDecoder
	NewEncoder    = JSON.NewEncoder
	Valid         = JSON.Valid
)

// RawMessage defers decoding of an envelope payload.
type RawMessage = jsoniter.RawMessage
