// Package stream provides Stream Backend implementations: an in-process ledger
// and a Postgres-backed ledger. Both store schema-typed records keyed by
// (schema, publisher, data id) and hand out Keccak-256 commit ids.
package stream

import (
	"context"
	"encoding/binary"
	"encoding/hex"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
	"golang.org/x/crypto/sha3"
)

// Backend is the full stream backend surface used by the service.
type Backend interface {
	ComputeSchemaID(ctx context.Context, definition string) (model.SchemaID, error)
	RegisterSchemas(ctx context.Context, regs []model.SchemaRegistration, ignoreRegistered bool) (string, error)
	SchemaDefinition(ctx context.Context, id model.SchemaID) (string, error)
	Set(ctx context.Context, streams []model.DataStream) (string, error)
	WaitForConfirmation(ctx context.Context, txHash string) error
	PublisherData(ctx context.Context, id model.SchemaID, publisher, cursor string, limit int) (model.RecordPage, error)
	GetAllPublisherDataForSchema(ctx context.Context, id model.SchemaID, publisher string) ([]model.StoredRecord, error)
	Close() error
}

type pager interface {
	PublisherData(ctx context.Context, id model.SchemaID, publisher, cursor string, limit int) (model.RecordPage, error)
}

const allPageSize = 500

// collectAll follows NextCursor until the last page.
func collectAll(ctx context.Context, p pager, id model.SchemaID, publisher string) ([]model.StoredRecord, error) {
	var out []model.StoredRecord
	cursor := ""
	for {
		page, err := p.PublisherData(ctx, id, publisher, cursor, allPageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Records...)
		if page.NextCursor == "" {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

// txHash derives a commit id from a monotonically increasing nonce and the payload.
func txHash(nonce uint64, parts ...[]byte) string {
	h := sha3.NewLegacyKeccak256()
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	h.Write(n[:])
	for _, p := range parts {
		h.Write(p)
	}
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

func streamsPayload(streams []model.DataStream) [][]byte {
	parts := make([][]byte, 0, len(streams)*3)
	for _, s := range streams {
		id := s.ID
		parts = append(parts, id[:], []byte(s.SchemaID), s.Data)
	}
	return parts
}

func validateStreams(streams []model.DataStream) error {
	if len(streams) == 0 {
		return ErrEmptyBatch
	}
	for _, s := range streams {
		if len(s.Data) == 0 {
			return ErrEmptyRecord
		}
	}
	return nil
}
