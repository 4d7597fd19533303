package kvstore

import (
	"context"
	"database/sql"
	"fmt"
)

// Postgres はPostgreSQLバックエンドのStore実装。
// kv_entriesテーブル（keyカラムが主キー）への単純なUPSERTで実現する。
// スキーマはinternal/databaseのマイグレーションで管理される。
type Postgres struct {
	db *sql.DB
}

// NewPostgres はPostgresの新しいインスタンスを生成する。
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Get は指定キーの値を返す。
func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	query := `SELECT value FROM kv_entries WHERE key = $1`

	var value string
	err := p.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get kv entry: %w", err)
	}
	return value, true, nil
}

// Set は指定キーに値をUPSERTする。
func (p *Postgres) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = now()`

	if _, err := p.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set kv entry: %w", err)
	}
	return nil
}

// Delete は指定キーを削除する。存在しないキーの削除も成功として扱う。
func (p *Postgres) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM kv_entries WHERE key = $1`

	if _, err := p.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete kv entry: %w", err)
	}
	return nil
}
