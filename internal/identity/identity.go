// Package identity derives content-addressed IDs for documents and
// chunks. All IDs are version-5 (SHA-1, name-based) UUIDs over a
// canonical string in a fixed namespace, so the same inputs produce
// the same ID across process restarts and across implementations in
// other languages that follow the same canonicalization.
//
// Canonical strings:
//
//	document: "doc|v1|<owner_id base-10>|<content sha256, lowercase hex>"
//	chunk:    "chunk|v1|<document uuid string>|<chunker name>|<chunker version base-10>|<ordinal base-10>"
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Namespace is the fixed UUID namespace for all derived IDs. Changing
// it invalidates every stored ID, so it is a constant, not config.
var Namespace = uuid.MustParse("6f1c24e8-9a0b-4c5d-8e2f-3b7a91d04c66")

var (
	ErrEmptyOwner       = errors.New("owner id must be non-zero")
	ErrInvalidHash      = errors.New("content hash must be a 64-char hex sha256")
	ErrEmptyChunkerName = errors.New("chunker name must be non-empty")
	ErrInvalidOrdinal   = errors.New("ordinal must be non-negative")
)

// HashContent returns the lowercase hex SHA-256 of raw document bytes.
func HashContent(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// DocumentID derives the deterministic document ID for an owner and
// content hash.
func DocumentID(ownerID uint, contentHash string) (uuid.UUID, error) {
	if ownerID == 0 {
		return uuid.Nil, ErrEmptyOwner
	}
	contentHash = strings.ToLower(strings.TrimSpace(contentHash))
	if len(contentHash) != 64 {
		return uuid.Nil, ErrInvalidHash
	}
	if _, err := hex.DecodeString(contentHash); err != nil {
		return uuid.Nil, ErrInvalidHash
	}
	name := fmt.Sprintf("doc|v1|%s|%s", strconv.FormatUint(uint64(ownerID), 10), contentHash)
	return uuid.NewSHA1(Namespace, []byte(name)), nil
}

// ChunkID derives the deterministic chunk ID. A chunker version bump
// yields a disjoint ID set for the same document.
func ChunkID(documentID uuid.UUID, chunkerName string, chunkerVersion, ordinal int) (uuid.UUID, error) {
	if documentID == uuid.Nil {
		return uuid.Nil, errors.New("document id must be non-nil")
	}
	chunkerName = strings.TrimSpace(chunkerName)
	if chunkerName == "" || strings.Contains(chunkerName, "|") {
		return uuid.Nil, ErrEmptyChunkerName
	}
	if ordinal < 0 {
		return uuid.Nil, ErrInvalidOrdinal
	}
	name := fmt.Sprintf("chunk|v1|%s|%s|%d|%d", documentID.String(), chunkerName, chunkerVersion, ordinal)
	return uuid.NewSHA1(Namespace, []byte(name)), nil
}
