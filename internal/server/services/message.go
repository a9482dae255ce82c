package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophchat/internal/chat"
	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/dbx"
	"github.com/dmitrijs2005/gophchat/internal/server/config"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/repomanager"
)

const (
	defaultPageSize = 15
	maxBodyLen      = 4000
)

// Archiver stores a copy of the history before it is cleared and returns
// the location it was written to.
type Archiver interface {
	Archive(ctx context.Context, msgs []chat.Message, clearedAt time.Time) (string, error)
}

// Page is one page of history, counted from the newest message.
type Page struct {
	Messages    []chat.Message
	TotalPages  int
	CurrentPage int
}

// MessageService owns the shared history: it stamps ids and server time on
// new messages, pages the log and clears it.
type MessageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	archiver    Archiver
	maxPageSize int
	now         func() time.Time
	newID       func() string
}

// NewMessageService builds the service. archiver may be nil, in which case
// Clear deletes without keeping a copy.
func NewMessageService(db *sql.DB, m repomanager.RepositoryManager, archiver Archiver, cfg *config.Config) *MessageService {
	maxPage := cfg.MaxPageSize
	if maxPage <= 0 {
		maxPage = 100
	}
	return &MessageService{
		db:          db,
		repomanager: m,
		archiver:    archiver,
		maxPageSize: maxPage,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Post validates body, assigns an id and the server time, and appends the
// message to the history.
func (s *MessageService) Post(ctx context.Context, author, body string) (chat.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return chat.Message{}, fmt.Errorf("%w: message is empty", common.ErrorValidation)
	}
	if utf8.RuneCountInString(body) > maxBodyLen {
		return chat.Message{}, fmt.Errorf("%w: message is longer than %d characters", common.ErrorValidation, maxBodyLen)
	}
	author = strings.TrimSpace(author)
	if author == "" {
		author = chat.Anonymous
	}

	m := chat.Message{
		ID:     s.newID(),
		Author: author,
		Body:   body,
		SentAt: chat.Truncate(s.now()),
		Origin: chat.OriginLive,
	}
	if err := s.repomanager.Messages(s.db).Insert(ctx, m); err != nil {
		return chat.Message{}, fmt.Errorf("error saving message: %w", err)
	}
	return m, nil
}

// Page returns history page `page` of size limit. Out-of-range limits are
// clamped to [1, MaxPageSize]; a page past the end is empty.
func (s *MessageService) Page(ctx context.Context, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit <= 0:
		limit = defaultPageSize
	case limit > s.maxPageSize:
		limit = s.maxPageSize
	}

	repo := s.repomanager.Messages(s.db)
	total, err := repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("error counting messages: %w", err)
	}

	result := &Page{
		Messages:    []chat.Message{},
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
	}
	if page > result.TotalPages {
		return result, nil
	}

	msgs, err := repo.Page(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("error loading messages: %w", err)
	}
	if msgs != nil {
		result.Messages = msgs
	}
	return result, nil
}

// Recent returns up to n of the newest messages, oldest first.
func (s *MessageService) Recent(ctx context.Context, n int) ([]chat.Message, error) {
	if n <= 0 {
		return nil, nil
	}
	msgs, err := s.repomanager.Messages(s.db).Page(ctx, 1, n)
	if err != nil {
		return nil, fmt.Errorf("error loading messages: %w", err)
	}
	return msgs, nil
}

// Clear deletes the history for everyone. With an archiver configured the
// history is archived first and a failed upload leaves it untouched.
func (s *MessageService) Clear(ctx context.Context) (int64, error) {
	var removed int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Messages(tx)
		if s.archiver != nil {
			msgs, err := repo.All(ctx)
			if err != nil {
				return fmt.Errorf("error loading messages: %w", err)
			}
			if len(msgs) > 0 {
				if _, err := s.archiver.Archive(ctx, msgs, s.now()); err != nil {
					return fmt.Errorf("error archiving messages: %w", err)
				}
			}
		}
		n, err := repo.Clear(ctx)
		if err != nil {
			return fmt.Errorf("error clearing messages: %w", err)
		}
		removed = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
