package messages

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophchat/internal/chat"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock, db
}

func TestInsert(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	m := chat.Message{ID: "m1", Author: "ann", Body: "hi", SentAt: t0}
	mock.ExpectExec(`INSERT INTO messages \(id, author, body, sent_at\)\s+VALUES \(\$1, \$2, \$3, \$4\)`).
		WithArgs("m1", "ann", "hi", t0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), m))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO messages`).WillReturnError(errors.New("db down"))

	err := repo.Insert(context.Background(), chat.Message{ID: "m1", Body: "hi", SentAt: t0})
	assert.EqualError(t, err, "db error: db down")
}

func TestPage_NewestFirstReturnedAscending(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	rows := sqlmock.NewRows([]string{"id", "author", "body", "sent_at"}).
		AddRow("m3", "bob", "three", t0.Add(2*time.Minute)).
		AddRow("m2", "ann", "two", t0.Add(time.Minute))
	mock.ExpectQuery(`SELECT id, author, body, sent_at FROM messages\s+ORDER BY sent_at DESC, id DESC\s+LIMIT \$1 OFFSET \$2`).
		WithArgs(2, 2).
		WillReturnRows(rows)

	got, err := repo.Page(context.Background(), 2, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m2", got[0].ID)
	assert.Equal(t, "m3", got[1].ID)
	assert.Equal(t, chat.OriginHistory, got[0].Origin)
}

func TestPage_OutOfRangeArgs(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	got, err := repo.Page(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPage_QueryError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT id, author, body, sent_at FROM messages`).
		WillReturnError(errors.New("db err"))

	_, err := repo.Page(context.Background(), 1, 15)
	assert.EqualError(t, err, "failed to select messages: db err")
}

func TestCount(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM messages`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(31))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 31, n)
}

func TestAll(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	rows := sqlmock.NewRows([]string{"id", "author", "body", "sent_at"}).
		AddRow("m1", "ann", "one", t0).
		AddRow("m2", "bob", "two", t0.Add(time.Second))
	mock.ExpectQuery(`ORDER BY sent_at ASC, id ASC`).WillReturnRows(rows)

	got, err := repo.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, []string{got[0].ID, got[1].ID})
}

func TestClear(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM messages`).WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.Clear(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestClear_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM messages`).WillReturnError(errors.New("locked"))

	_, err := repo.Clear(context.Background())
	assert.EqualError(t, err, "db error: locked")
}
