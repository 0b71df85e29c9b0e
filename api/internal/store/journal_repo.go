package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"sanskrit-reader/api/internal/translate"
)

// JournalRepo keeps one row per translation request: outcome, engine and
// timing. Inputs are stored only as a SHA-256 fingerprint.
type JournalRepo struct{ DB *sql.DB }

func NewJournalRepo(db *sql.DB) *JournalRepo { return &JournalRepo{DB: db} }

type JournalRow struct {
	ID        uuid.UUID
	CreatedAt time.Time
	translate.Entry
}

const journalDDL = `
create table if not exists translation_journal (
  id          uuid primary key,
  created_at  timestamptz not null default now(),
  kind        text not null,
  engine      text not null,
  model       text not null,
  input_hash  text not null default '',
  success     boolean not null,
  error_kind  text not null default '',
  latency_ms  bigint not null
);
create index if not exists translation_journal_created_at_idx on translation_journal (created_at desc)`

func (r *JournalRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, journalDDL)
	return err
}

// Record implements translate.Journal.
func (r *JournalRepo) Record(ctx context.Context, e translate.Entry) error {
	const q = `
insert into translation_journal (id, kind, engine, model, input_hash, success, error_kind, latency_ms)
values ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.DB.ExecContext(ctx, q,
		uuid.New(), e.Kind, e.Engine, e.Model, e.InputHash, e.Success, string(e.ErrorKind), e.Latency.Milliseconds(),
	)
	return err
}

// Recent returns the newest rows first.
func (r *JournalRepo) Recent(ctx context.Context, limit int) ([]JournalRow, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
select id, created_at, kind, engine, model, input_hash, success, error_kind, latency_ms
from translation_journal
order by created_at desc
limit $1`
	rows, err := r.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalRow
	for rows.Next() {
		var (
			row       JournalRow
			errorKind string
			latencyMS int64
		)
		if err := rows.Scan(&row.ID, &row.CreatedAt, &row.Kind, &row.Engine, &row.Model,
			&row.InputHash, &row.Success, &errorKind, &latencyMS); err != nil {
			return nil, err
		}
		row.ErrorKind = translate.Kind(errorKind)
		row.Latency = time.Duration(latencyMS) * time.Millisecond
		out = append(out, row)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes rows older than the given age.
func (r *JournalRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	res, err := r.DB.ExecContext(ctx, `delete from translation_journal where created_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}

func (r *JournalRepo) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}
