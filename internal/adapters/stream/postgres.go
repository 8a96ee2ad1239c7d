package stream

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/schema"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/logger"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres is a ledger persisted in PostgreSQL. A commit is durable once Set
// returns, so WaitForConfirmation only checks the commit exists.
type Postgres struct {
	publisher string
	pool      *pgxpool.Pool
	opts      options
}

var _ Backend = (*Postgres)(nil)

// NewPostgres connects to dsn, applies pending migrations and signs writes as publisher.
func NewPostgres(ctx context.Context, dsn, publisher string, opts ...Option) (*Postgres, error) {
	publisher = normalizePublisher(publisher)
	if publisher == "" {
		return nil, ErrNoPublisher
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := &Postgres{
		publisher: publisher,
		pool:      pool,
		opts:      buildOptions("stream.postgres", opts),
	}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	db := stdlib.OpenDBFromPool(p.pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		p.opts.logger.Info(ctx, "migration applied",
			logger.String("source", r.Source.Path),
			logger.Duration("duration", r.Duration),
		)
	}
	return nil
}

// Publisher returns the address writes are attributed to.
func (p *Postgres) Publisher() string { return p.publisher }

// ComputeSchemaID hashes the canonical form of definition.
func (p *Postgres) ComputeSchemaID(_ context.Context, definition string) (model.SchemaID, error) {
	return computeSchemaID(definition)
}

// RegisterSchemas inserts every registration not yet stored in one transaction.
func (p *Postgres) RegisterSchemas(ctx context.Context, regs []model.SchemaRegistration, ignoreRegistered bool) (string, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	hash, err := p.nextTxHash(ctx, tx, []byte("register"))
	if err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO stream_txs (tx_hash) VALUES ($1)`, hash); err != nil {
		return "", err
	}

	inserted := 0
	for _, reg := range regs {
		def, err := schema.Parse(reg.Definition)
		if err != nil {
			return "", err
		}
		id := schema.ComputeID(def)
		tag, err := tx.Exec(ctx, `
			INSERT INTO stream_schemas (schema_id, name, definition, parent_id, tx_hash)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (schema_id) DO NOTHING`,
			string(id), reg.Name, def.String(), string(reg.ParentSchemaID), hash)
		if err != nil {
			return "", err
		}
		if tag.RowsAffected() == 1 {
			inserted++
			continue
		}
		var existing string
		if err := tx.QueryRow(ctx, `SELECT definition FROM stream_schemas WHERE schema_id = $1`, string(id)).Scan(&existing); err != nil {
			return "", err
		}
		if existing != def.String() {
			return "", fmt.Errorf("%w: %s", model.ErrSchemaConflict, id)
		}
		if !ignoreRegistered {
			return "", fmt.Errorf("%w: %s", model.ErrAlreadyRegistered, id)
		}
	}
	if inserted == 0 {
		return "", nil
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return hash, nil
}

// SchemaDefinition returns the canonical definition registered under id.
func (p *Postgres) SchemaDefinition(ctx context.Context, id model.SchemaID) (string, error) {
	var def string
	err := p.pool.QueryRow(ctx, `SELECT definition FROM stream_schemas WHERE schema_id = $1`,
		string(normalizeSchemaID(id))).Scan(&def)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", model.ErrSchemaNotFound, id)
	}
	return def, err
}

// Set writes streams in one transaction. Keys already stored keep their
// original commit; a batch made only of existing keys returns that commit id.
func (p *Postgres) Set(ctx context.Context, streams []model.DataStream) (string, error) {
	if err := validateStreams(streams); err != nil {
		return "", err
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	hash, err := p.nextTxHash(ctx, tx, streamsPayload(streams)...)
	if err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO stream_txs (tx_hash) VALUES ($1)`, hash); err != nil {
		return "", err
	}

	inserted := 0
	existingTx := ""
	for _, s := range streams {
		sid := string(normalizeSchemaID(s.SchemaID))
		var known bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stream_schemas WHERE schema_id = $1)`, sid).Scan(&known); err != nil {
			return "", err
		}
		if !known {
			return "", fmt.Errorf("%w: %s", model.ErrSchemaNotFound, s.SchemaID)
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO stream_records (schema_id, publisher, data_id, data, tx_hash)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (schema_id, publisher, data_id) DO NOTHING`,
			sid, p.publisher, s.ID[:], s.Data, hash)
		if err != nil {
			return "", err
		}
		if tag.RowsAffected() == 1 {
			inserted++
			continue
		}
		if err := tx.QueryRow(ctx, `
			SELECT tx_hash FROM stream_records
			WHERE schema_id = $1 AND publisher = $2 AND data_id = $3`,
			sid, p.publisher, s.ID[:]).Scan(&existingTx); err != nil {
			return "", err
		}
	}
	if inserted == 0 {
		p.opts.logger.Debug(ctx, "records already stored", logger.String("txHash", existingTx))
		return existingTx, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return hash, nil
}

// WaitForConfirmation reports whether txHash was committed.
func (p *Postgres) WaitForConfirmation(ctx context.Context, txHash string) error {
	var ok bool
	if err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stream_txs WHERE tx_hash = $1)`, txHash).Scan(&ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTxNotFound, txHash)
	}
	return nil
}

// PublisherData pages records in commit order. The cursor is the last seq seen.
func (p *Postgres) PublisherData(ctx context.Context, id model.SchemaID, publisher, cursor string, limit int) (model.RecordPage, error) {
	after := int64(0)
	if cursor != "" {
		n, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil || n < 0 {
			return model.RecordPage{}, fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
		}
		after = n
	}
	if limit <= 0 {
		limit = allPageSize
	}

	rows, err := p.pool.Query(ctx, `
		SELECT seq, data_id, data, tx_hash FROM stream_records
		WHERE schema_id = $1 AND publisher = $2 AND seq > $3
		ORDER BY seq
		LIMIT $4`,
		string(normalizeSchemaID(id)), normalizePublisher(publisher), after, limit+1)
	if err != nil {
		return model.RecordPage{}, err
	}
	defer rows.Close()

	var (
		page model.RecordPage
		seqs []int64
	)
	for rows.Next() {
		var (
			seq    int64
			dataID []byte
			rec    model.StoredRecord
		)
		if err := rows.Scan(&seq, &dataID, &rec.Data, &rec.TxHash); err != nil {
			return model.RecordPage{}, err
		}
		copy(rec.ID[:], dataID)
		page.Records = append(page.Records, rec)
		seqs = append(seqs, seq)
	}
	if err := rows.Err(); err != nil {
		return model.RecordPage{}, err
	}
	if len(page.Records) > limit {
		page.Records = page.Records[:limit]
		page.NextCursor = strconv.FormatInt(seqs[limit-1], 10)
	}
	return page, nil
}

// GetAllPublisherDataForSchema returns every record of publisher under id.
func (p *Postgres) GetAllPublisherDataForSchema(ctx context.Context, id model.SchemaID, publisher string) ([]model.StoredRecord, error) {
	return collectAll(ctx, p, id, publisher)
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) nextTxHash(ctx context.Context, tx pgx.Tx, parts ...[]byte) (string, error) {
	var nonce int64
	if err := tx.QueryRow(ctx, `SELECT nextval('stream_tx_nonce')`).Scan(&nonce); err != nil {
		return "", err
	}
	return txHash(uint64(nonce), parts...), nil
}
