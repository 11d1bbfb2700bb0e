package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/intelligent-ticket-agent/internal/jsonx"
	"github.com/intelligent-ticket-agent/internal/ticket"
)

const (
	// findLimit bounds every pattern lookup.
	findLimit = 20
	// exportRecordLimit bounds the record tail included in an export.
	exportRecordLimit = 1000
	// cacheTTL bounds staleness of cached lookups between writes.
	cacheTTL = time.Minute
)

// SQLiteStore implements Store on a local SQLite database (WAL mode) with
// a Ristretto read cache in front of FindPatterns. All writes run in a
// single transaction, which serializes per-pattern read-modify-write.
type SQLiteStore struct {
	db     *sql.DB
	cache  *ristretto.Cache[string, []Pattern]
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the knowledge database at path and
// runs migrations.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStoreUnavailable, path, err)
	}

	// WAL keeps FindPatterns readable while RecordOutcome commits.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enable wal: %v", ErrStoreUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: busy timeout: %v", ErrStoreUnavailable, err)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, []Pattern]{
		NumCounters: 10000,
		MaxCost:     1 << 14,
		BufferItems: 64,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create pattern cache: %w", err)
	}

	s := &SQLiteStore{db: db, cache: cache, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS patterns (
			key           TEXT PRIMARY KEY,
			template      TEXT NOT NULL DEFAULT '',
			sample_count  INTEGER NOT NULL DEFAULT 0,
			success_score REAL NOT NULL DEFAULT 0,
			last_used     TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS quality_records (
			id            TEXT PRIMARY KEY,
			ticket_number INTEGER NOT NULL,
			pattern_keys  TEXT NOT NULL DEFAULT '[]',
			quality_score REAL NOT NULL,
			enhancements  TEXT NOT NULL DEFAULT '[]',
			created_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_patterns_rank ON patterns(success_score DESC, sample_count DESC);
		CREATE INDEX IF NOT EXISTS idx_records_created ON quality_records(created_at);
		CREATE INDEX IF NOT EXISTS idx_records_ticket ON quality_records(ticket_number);
	`)
	if err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// FindPatterns returns the ranked patterns matching the feature set.
func (s *SQLiteStore) FindPatterns(ctx context.Context, f ticket.Features) ([]Pattern, error) {
	keys := f.Keys()
	cacheKey := strings.Join(keys, "|")
	if hit, ok := s.cache.Get(cacheKey); ok {
		return hit, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, template, sample_count, success_score, last_used
		FROM patterns
		WHERE key IN (`+placeholders+`)
		ORDER BY success_score DESC, sample_count DESC, last_used DESC
		LIMIT `+fmt.Sprint(findLimit),
		args...)
	if err != nil {
		return nil, fmt.Errorf("%w: find patterns: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var patterns []Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan pattern: %v", ErrStoreUnavailable, err)
		}
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: find patterns: %v", ErrStoreUnavailable, err)
	}

	s.cache.SetWithTTL(cacheKey, patterns, int64(len(patterns)+1), cacheTTL)
	return patterns, nil
}

// RecordOutcome appends the quality record and updates every referenced
// pattern in one transaction.
func (s *SQLiteStore) RecordOutcome(ctx context.Context, rec QualityRecord, updates []PatternUpdate) error {
	patternKeys, err := jsonx.MarshalToString(rec.PatternKeys)
	if err != nil {
		return fmt.Errorf("encode pattern keys: %w", err)
	}
	enhancements, err := jsonx.MarshalToString(rec.EnhancementsApplied)
	if err != nil {
		return fmt.Errorf("encode enhancements: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	now := rec.Timestamp.UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO quality_records (id, ticket_number, pattern_keys, quality_score, enhancements, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TicketNumber, patternKeys, rec.QualityScore, enhancements, now)
	if err != nil {
		return fmt.Errorf("%w: append record: %v", ErrStoreUnavailable, err)
	}

	for _, u := range updates {
		// Seed unseen keys so the first outcome lands score = quality.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO patterns (key, template, sample_count, success_score, last_used)
			VALUES (?, ?, 0, 0, ?)
			ON CONFLICT(key) DO NOTHING`,
			u.Key, u.Template, now)
		if err != nil {
			return fmt.Errorf("%w: seed pattern %s: %v", ErrStoreUnavailable, u.Key, err)
		}

		// The incremental mean runs inside SQL so the read-modify-write is
		// serialized by the transaction, never torn across concurrent
		// outcomes for the same key.
		_, err = tx.ExecContext(ctx, `
			UPDATE patterns SET
				success_score = success_score + (? - success_score) / (sample_count + 1),
				sample_count  = sample_count + 1,
				template      = CASE WHEN ? != '' THEN ? ELSE template END,
				last_used     = ?
			WHERE key = ?`,
			rec.QualityScore, u.Template, u.Template, now, u.Key)
		if err != nil {
			return fmt.Errorf("%w: update pattern %s: %v", ErrStoreUnavailable, u.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit outcome: %v", ErrStoreUnavailable, err)
	}

	// Cached lookups are keyed by candidate-key sets, which cannot be
	// mapped back to the updated keys, so a write clears the whole cache.
	// Writes are rare relative to lookups; the cache refills on demand.
	s.cache.Clear()
	return nil
}

// Cleanup removes aged-out records and low-evidence patterns.
func (s *SQLiteStore) Cleanup(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin cleanup: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	var removed int64
	res, err := tx.ExecContext(ctx, `DELETE FROM quality_records WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: cleanup records: %v", ErrStoreUnavailable, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		removed += n
	}

	res, err = tx.ExecContext(ctx, `
		DELETE FROM patterns
		WHERE last_used < ? AND sample_count < ?`,
		cutoff, MinSignificantSamples)
	if err != nil {
		return 0, fmt.Errorf("%w: cleanup patterns: %v", ErrStoreUnavailable, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		removed += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit cleanup: %v", ErrStoreUnavailable, err)
	}

	s.cache.Clear()
	s.logger.Info("knowledge cleanup complete",
		zap.Int("older_than_days", olderThanDays),
		zap.Int64("removed", removed))
	return int(removed), nil
}

// Stats computes the operator aggregate.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(success_score), 0),
		       COALESCE(SUM(CASE WHEN sample_count >= ? THEN 1 ELSE 0 END), 0)
		FROM patterns`, MinSignificantSamples)
	if err := row.Scan(&st.TotalPatterns, &st.AvgSuccessScore, &st.SignificantPatterns); err != nil {
		return Stats{}, fmt.Errorf("%w: pattern stats: %v", ErrStoreUnavailable, err)
	}

	recentCutoff := time.Now().UTC().AddDate(0, 0, -7).Format(time.RFC3339)
	row = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN created_at > ? THEN 1 ELSE 0 END), 0)
		FROM quality_records`, recentCutoff)
	if err := row.Scan(&st.TotalQualityRecords, &st.RecentRecords7d); err != nil {
		return Stats{}, fmt.Errorf("%w: record stats: %v", ErrStoreUnavailable, err)
	}
	return st, nil
}

// Export dumps the store for operators. Reads run against the live
// database; WAL mode keeps them from stalling ingestion.
func (s *SQLiteStore) Export(ctx context.Context) (Snapshot, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{ExportedAt: time.Now().UTC(), Stats: stats}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, template, sample_count, success_score, last_used
		FROM patterns
		ORDER BY success_score DESC, sample_count DESC, last_used DESC`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: export patterns: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: export patterns: %v", ErrStoreUnavailable, err)
		}
		snap.Patterns = append(snap.Patterns, p)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("%w: export patterns: %v", ErrStoreUnavailable, err)
	}

	recRows, err := s.db.QueryContext(ctx, `
		SELECT id, ticket_number, pattern_keys, quality_score, enhancements, created_at
		FROM quality_records
		ORDER BY created_at DESC
		LIMIT ?`, exportRecordLimit)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: export records: %v", ErrStoreUnavailable, err)
	}
	defer recRows.Close()
	for recRows.Next() {
		var (
			rec          QualityRecord
			patternKeys  string
			enhancements string
			createdAt    string
		)
		if err := recRows.Scan(&rec.ID, &rec.TicketNumber, &patternKeys, &rec.QualityScore, &enhancements, &createdAt); err != nil {
			return Snapshot{}, fmt.Errorf("%w: export records: %v", ErrStoreUnavailable, err)
		}
		jsonx.UnmarshalFromString(patternKeys, &rec.PatternKeys)
		jsonx.UnmarshalFromString(enhancements, &rec.EnhancementsApplied)
		rec.Timestamp, _ = time.Parse(time.RFC3339, createdAt)
		snap.Records = append(snap.Records, rec)
	}
	if err := recRows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("%w: export records: %v", ErrStoreUnavailable, err)
	}

	return snap, nil
}

// Close releases the database and the cache.
func (s *SQLiteStore) Close() error {
	s.cache.Close()
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPattern(r rowScanner) (Pattern, error) {
	var (
		p        Pattern
		lastUsed string
	)
	if err := r.Scan(&p.Key, &p.Template, &p.SampleCount, &p.SuccessScore, &lastUsed); err != nil {
		return Pattern{}, err
	}
	p.LastUsed, _ = time.Parse(time.RFC3339, lastUsed)
	return p, nil
}
