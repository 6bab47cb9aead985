package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Pool = (*pgxpool.Pool)(nil)
	_ Pool = (pgxmock.PgxPoolIface)(nil)
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func TestInTx_Commits(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE farming_contexts`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := InTx(context.Background(), mock, func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), `UPDATE farming_contexts SET last_irrigation = now()`)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_RollsBackOnError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := InTx(context.Background(), mock, func(pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_BeginFails(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("no conn"))

	err := InTx(context.Background(), mock, func(pgx.Tx) error {
		t.Fatal("fn must not run")
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: begin tx")
}

func TestOpen_BadConnString(t *testing.T) {
	_, err := Open(context.Background(), "postgres://%zz", PoolConfig{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: parse config")
}
