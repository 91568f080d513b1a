// Copyright 2025 Mercil Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/ffirst2551/mercil/core"
	"github.com/mus-format/mus-go/varint"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	return MarshalUint64(uint64(id))
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, err := UnmarshalUint64(data)
	return core.ID(v), err
}

// MarshalUint64 serializes a uint64 with a variable-length encoding.
func MarshalUint64(v uint64) []byte {
	buf := make([]byte, varint.Uint64.Size(v))
	varint.Uint64.Marshal(v, buf)
	return buf
}

// UnmarshalUint64 deserializes a variable-length encoded uint64.
func UnmarshalUint64(data []byte) (uint64, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	return v, err
}

// MarshalAsset serializes an asset record to bytes. Embeddings are not
// part of the record; they live under separate vector keys so similarity
// scans decode only vectors.
func MarshalAsset(asset *core.Asset) ([]byte, error) {
	return json.Marshal(asset)
}

// UnmarshalAsset deserializes an asset record from bytes.
func UnmarshalAsset(data []byte) (*core.Asset, error) {
	var asset core.Asset
	if err := json.Unmarshal(data, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// MarshalVector serializes an embedding as packed little-endian float32.
func MarshalVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// UnmarshalVector deserializes a packed little-endian float32 embedding.
func UnmarshalVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: vector data is %d bytes", ErrTruncatedData, len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
