package stream

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/schema"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/logger"
)

type schemaEntry struct {
	name       string
	definition string
	parent     model.SchemaID
}

type recordKey struct {
	schemaID  model.SchemaID
	publisher string
	id        model.DataID
}

// Memory is an in-process ledger. Every write is confirmed immediately
// (after the optional confirmation delay) and visible to the next read.
type Memory struct {
	publisher string
	opts      options

	mu      sync.RWMutex
	closed  bool
	nonce   uint64
	schemas map[model.SchemaID]schemaEntry
	records map[model.SchemaID]map[string][]model.StoredRecord // schema -> publisher -> insertion order
	index   map[recordKey]string
	txs     map[string]time.Time
}

var _ Backend = (*Memory)(nil)

// NewMemory creates an empty ledger that signs writes as publisher.
func NewMemory(publisher string, opts ...Option) (*Memory, error) {
	publisher = normalizePublisher(publisher)
	if publisher == "" {
		return nil, ErrNoPublisher
	}
	return &Memory{
		publisher: publisher,
		opts:      buildOptions("stream.memory", opts),
		schemas:   make(map[model.SchemaID]schemaEntry),
		records:   make(map[model.SchemaID]map[string][]model.StoredRecord),
		index:     make(map[recordKey]string),
		txs:       make(map[string]time.Time),
	}, nil
}

// Publisher returns the address writes are attributed to.
func (m *Memory) Publisher() string { return m.publisher }

// ComputeSchemaID hashes the canonical form of definition.
func (m *Memory) ComputeSchemaID(_ context.Context, definition string) (model.SchemaID, error) {
	return computeSchemaID(definition)
}

// RegisterSchemas stores every registration not yet known. It returns an empty
// tx hash when there was nothing to register.
func (m *Memory) RegisterSchemas(ctx context.Context, regs []model.SchemaRegistration, ignoreRegistered bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	type pending struct {
		id    model.SchemaID
		entry schemaEntry
	}
	var todo []pending
	for _, reg := range regs {
		def, err := schema.Parse(reg.Definition)
		if err != nil {
			return "", err
		}
		todo = append(todo, pending{
			id:    schema.ComputeID(def),
			entry: schemaEntry{name: reg.Name, definition: def.String(), parent: reg.ParentSchemaID},
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}

	var fresh []pending
	for _, p := range todo {
		existing, ok := m.schemas[p.id]
		switch {
		case !ok:
			fresh = append(fresh, p)
		case existing.definition != p.entry.definition:
			return "", fmt.Errorf("%w: %s", model.ErrSchemaConflict, p.id)
		case !ignoreRegistered:
			return "", fmt.Errorf("%w: %s", model.ErrAlreadyRegistered, p.id)
		}
	}
	if len(fresh) == 0 {
		return "", nil
	}

	parts := make([][]byte, 0, len(fresh))
	for _, p := range fresh {
		m.schemas[p.id] = p.entry
		parts = append(parts, []byte(p.id))
	}
	return m.commit(parts...), nil
}

// SchemaDefinition returns the canonical definition registered under id.
func (m *Memory) SchemaDefinition(_ context.Context, id model.SchemaID) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", ErrClosed
	}
	e, ok := m.schemas[normalizeSchemaID(id)]
	if !ok {
		return "", fmt.Errorf("%w: %s", model.ErrSchemaNotFound, id)
	}
	return e.definition, nil
}

// Set writes streams as one commit. Records whose key already exists are not
// rewritten; a batch made only of existing keys returns the original commit id.
func (m *Memory) Set(ctx context.Context, streams []model.DataStream) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateStreams(streams); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}

	var fresh []model.DataStream
	existingTx := ""
	for _, s := range streams {
		sid := normalizeSchemaID(s.SchemaID)
		if _, ok := m.schemas[sid]; !ok {
			return "", fmt.Errorf("%w: %s", model.ErrSchemaNotFound, s.SchemaID)
		}
		if tx, ok := m.index[recordKey{sid, m.publisher, s.ID}]; ok {
			existingTx = tx
			continue
		}
		s.SchemaID = sid
		fresh = append(fresh, s)
	}
	if len(fresh) == 0 {
		m.opts.logger.Debug(ctx, "records already stored", logger.String("txHash", existingTx))
		return existingTx, nil
	}

	tx := m.commit(streamsPayload(fresh)...)
	for _, s := range fresh {
		byPublisher, ok := m.records[s.SchemaID]
		if !ok {
			byPublisher = make(map[string][]model.StoredRecord)
			m.records[s.SchemaID] = byPublisher
		}
		data := make([]byte, len(s.Data))
		copy(data, s.Data)
		byPublisher[m.publisher] = append(byPublisher[m.publisher], model.StoredRecord{ID: s.ID, Data: data, TxHash: tx})
		m.index[recordKey{s.SchemaID, m.publisher, s.ID}] = tx
	}
	return tx, nil
}

// WaitForConfirmation returns once txHash is confirmed or ctx ends.
func (m *Memory) WaitForConfirmation(ctx context.Context, tx string) error {
	m.mu.RLock()
	_, ok := m.txs[tx]
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTxNotFound, tx)
	}
	if m.opts.confirmDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.opts.confirmDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PublisherData returns up to limit records of publisher under id, starting at
// cursor. The cursor is the decimal offset of the next record.
func (m *Memory) PublisherData(ctx context.Context, id model.SchemaID, publisher, cursor string, limit int) (model.RecordPage, error) {
	if err := ctx.Err(); err != nil {
		return model.RecordPage{}, err
	}
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return model.RecordPage{}, fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
		}
		offset = n
	}
	if limit <= 0 {
		limit = allPageSize
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return model.RecordPage{}, ErrClosed
	}
	sid := normalizeSchemaID(id)
	if _, ok := m.schemas[sid]; !ok {
		return model.RecordPage{}, fmt.Errorf("%w: %s", model.ErrSchemaNotFound, id)
	}
	all := m.records[sid][normalizePublisher(publisher)]
	if offset >= len(all) {
		return model.RecordPage{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	page := model.RecordPage{Records: make([]model.StoredRecord, end-offset)}
	copy(page.Records, all[offset:end])
	if end < len(all) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

// GetAllPublisherDataForSchema returns every record of publisher under id.
func (m *Memory) GetAllPublisherDataForSchema(ctx context.Context, id model.SchemaID, publisher string) ([]model.StoredRecord, error) {
	return collectAll(ctx, m, id, publisher)
}

// Close releases the ledger. Later calls fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// commit must be called with m.mu held.
func (m *Memory) commit(parts ...[]byte) string {
	m.nonce++
	tx := txHash(m.nonce, parts...)
	m.txs[tx] = time.Now()
	return tx
}

func computeSchemaID(definition string) (model.SchemaID, error) {
	def, err := schema.Parse(definition)
	if err != nil {
		return "", err
	}
	return schema.ComputeID(def), nil
}

func normalizePublisher(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

func normalizeSchemaID(id model.SchemaID) model.SchemaID {
	return model.SchemaID(strings.ToLower(string(id)))
}
