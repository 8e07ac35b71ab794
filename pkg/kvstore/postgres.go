package kvstore

import (
	"context"
	stdsql "database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

//go:embed migrations
var migrationsFS embed.FS

// Postgres is a SQL-backed implementation of Store. It exists for
// deployments that standardize on Postgres rather than Redis; any store
// satisfying spec §6.1 is acceptable, and this one favors durability and
// ease of audit over Redis's throughput.
type Postgres struct {
	db *stdsql.DB
}

// PostgresConfig mirrors the connection settings the teacher's database
// package takes, minus anything ent-specific.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewPostgres opens a connection pool, runs embedded migrations, and
// returns a ready-to-use Store.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running kvstore migrations: %w", err)
	}

	return &Postgres{db: db}, nil
}

func runMigrations(db *stdsql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("creating postgres migrate driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("constructing migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	).Scan(&value)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return value, true, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expires := expiresAt(ttl)
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expires)
	if err != nil {
		return fmt.Errorf("postgres set %s: %w", key, err)
	}
	return nil
}

func expiresAt(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := time.Now().Add(ttl)
	return &t
}

func (p *Postgres) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	// Clear out an expired row first so the unique key can be reclaimed.
	_, _ = p.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1 AND expires_at IS NOT NULL AND expires_at <= now()`, key)

	res, err := p.db.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING`,
		key, value, expiresAt(ttl))
	if err != nil {
		return false, fmt.Errorf("postgres setnx %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres setnx %s: %w", key, err)
	}
	return n > 0, nil
}

func (p *Postgres) Delete(ctx context.Context, key string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
	if err != nil {
		return false, fmt.Errorf("postgres delete %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (p *Postgres) DeleteIfMatch(ctx context.Context, key string, expected []byte) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE key = $1 AND value = $2 AND (expires_at IS NULL OR expires_at > now())`,
		key, expected)
	if err != nil {
		return false, fmt.Errorf("postgres delete-if-match %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (p *Postgres) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := p.Get(ctx, key)
	return ok, err
}

func (p *Postgres) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, '1', NULL)
		ON CONFLICT (key) DO UPDATE SET value = convert_to((COALESCE(NULLIF(convert_from(kv_entries.value, 'UTF8'), '')::bigint, 0) + 1)::text, 'UTF8')
		RETURNING convert_from(value, 'UTF8')::bigint`,
		key,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres incr %s: %w", key, err)
	}
	return n, nil
}

func (p *Postgres) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := p.db.ExecContext(ctx, `UPDATE kv_entries SET expires_at = $2 WHERE key = $1`, key, expiresAt(ttl))
	if err != nil {
		return fmt.Errorf("postgres expire %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Keys(ctx context.Context, pattern string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT key FROM kv_entries WHERE (expires_at IS NULL OR expires_at > now()) ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("postgres keys: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("postgres keys scan: %w", err)
		}
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out, rows.Err()
}

func (p *Postgres) ZAdd(ctx context.Context, key string, score float64, member string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO kv_zsets (key, member, score) VALUES ($1, $2, $3)
		ON CONFLICT (key, member) DO UPDATE SET score = EXCLUDED.score`,
		key, member, score)
	if err != nil {
		return fmt.Errorf("postgres zadd %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) zRange(ctx context.Context, key string, start, stop int64, desc bool) ([]string, error) {
	order := "ASC"
	if desc {
		order = "DESC"
	}
	limit, offset := rangeToLimitOffset(start, stop)
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT member FROM kv_zsets WHERE key = $1 ORDER BY score %s, member %s OFFSET $2 LIMIT $3`, order, order),
		key, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres zrange %s: %w", key, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("postgres zrange scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// rangeToLimitOffset converts a [start, stop] rank range into a SQL
// OFFSET/LIMIT pair. Unlike Redis, negative indices are not counted from
// the end: a negative start is treated as 0, and any negative stop means
// "to the end" (a generous limit), since the end of the set isn't known
// without a separate COUNT.
func rangeToLimitOffset(start, stop int64) (limit, offset int64) {
	if start < 0 {
		start = 0
	}
	if stop < 0 {
		return 1 << 30, start
	}
	if stop < start {
		return 0, start
	}
	return stop - start + 1, start
}

func (p *Postgres) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return p.zRange(ctx, key, start, stop, false)
}

func (p *Postgres) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return p.zRange(ctx, key, start, stop, true)
}

func (p *Postgres) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT member FROM kv_zsets WHERE key = $1 AND score >= $2 AND score <= $3 ORDER BY score ASC`,
		key, min, max)
	if err != nil {
		return nil, fmt.Errorf("postgres zrangebyscore %s: %w", key, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("postgres zrangebyscore scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) ZRem(ctx context.Context, key string, member string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM kv_zsets WHERE key = $1 AND member = $2`, key, member)
	if err != nil {
		return fmt.Errorf("postgres zrem %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) SAdd(ctx context.Context, key string, member string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO kv_sets (key, member) VALUES ($1, $2) ON CONFLICT DO NOTHING`, key, member)
	if err != nil {
		return fmt.Errorf("postgres sadd %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) SRem(ctx context.Context, key string, member string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM kv_sets WHERE key = $1 AND member = $2`, key, member)
	if err != nil {
		return fmt.Errorf("postgres srem %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) SMembers(ctx context.Context, key string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT member FROM kv_sets WHERE key = $1 ORDER BY member`, key)
	if err != nil {
		return nil, fmt.Errorf("postgres smembers %s: %w", key, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("postgres smembers scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) SCard(ctx context.Context, key string) (int64, error) {
	var n int64
	err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM kv_sets WHERE key = $1`, key).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres scard %s: %w", key, err)
	}
	return n, nil
}

var _ Store = (*Postgres)(nil)
