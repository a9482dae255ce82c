package messages

import (
	"context"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/gophchat/internal/chat"
	"github.com/dmitrijs2005/gophchat/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, m chat.Message) error {
	query := `
		INSERT INTO messages (id, author, body, sent_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, m.ID, m.Author, m.Body, m.SentAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Page(ctx context.Context, page, limit int) ([]chat.Message, error) {
	if page < 1 || limit < 1 {
		return nil, nil
	}
	query := `
		SELECT id, author, body, sent_at FROM messages
		ORDER BY sent_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	result, err := r.selectMessages(ctx, query, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	slices.Reverse(result)
	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) All(ctx context.Context) ([]chat.Message, error) {
	query := `
		SELECT id, author, body, sent_at FROM messages
		ORDER BY sent_at ASC, id ASC
	`
	return r.selectMessages(ctx, query)
}

func (r *PostgresRepository) Clear(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages`)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) selectMessages(ctx context.Context, query string, args ...any) ([]chat.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select messages: %w", err)
	}
	defer rows.Close()

	var result []chat.Message
	for rows.Next() {
		item := chat.Message{Origin: chat.OriginHistory}
		if err := rows.Scan(&item.ID, &item.Author, &item.Body, &item.SentAt); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
