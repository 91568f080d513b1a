package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/ffirst2551/mercil/core"
)

// Key prefixes for different data types. No prefix is a prefix of
// another, so prefix scans never cross record kinds.
const (
	assetRecordPrefix      = "astrec"
	assetTextVectorPrefix  = "astvtx"
	assetImageVectorPrefix = "astvim"
	assetIDSeq             = "astseq"
	checkpointPrefix       = "chkpt"
	metaDimensionKey       = "metadim"
)

// makeIDKey generates a key of the form prefix:id with the id big-endian
// so lexicographic key order is ascending id order.
func makeIDKey(prefix string, id core.ID) []byte {
	p := []byte(prefix + ":")
	buf := make([]byte, len(p)+8)
	offset := copy(buf, p)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeAssetKey generates the record key for an asset.
func makeAssetKey(id core.ID) []byte {
	return makeIDKey(assetRecordPrefix, id)
}

// vectorPrefix returns the key prefix holding embeddings of the given
// modality. Vectors live apart from records so similarity scans decode
// nothing but vectors.
func vectorPrefix(modality core.Modality) string {
	if modality == core.ModalityImage {
		return assetImageVectorPrefix
	}
	return assetTextVectorPrefix
}

// makeVectorKey generates the embedding key for an asset and modality.
func makeVectorKey(modality core.Modality, id core.ID) []byte {
	return makeIDKey(vectorPrefix(modality), id)
}

// keyAssetID extracts the big-endian asset id from the tail of a key
// produced by makeIDKey.
func keyAssetID(key []byte) (core.ID, error) {
	if len(key) < 8 {
		return 0, fmt.Errorf("malformed key: %d bytes", len(key))
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:])), nil
}

// makeCheckpointKey generates the key for a named maintenance checkpoint.
func makeCheckpointKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", checkpointPrefix, name))
}
