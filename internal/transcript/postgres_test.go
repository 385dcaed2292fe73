package transcript

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/supportdesk/pkg/types"
)

func TestPostgresSink_Write(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sink := NewPostgresSinkFromDB(db)
	rec := record("s1", 3)
	rec.Entities = types.Entities{"email": "a@b.com"}
	rec.RequiresEscalation = true
	rec.EscalationReason = types.EscalationKeyword

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO conversations`).
		WithArgs("s1", "u", "escalated", rec.Timestamp).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO messages`).
		WithArgs("s1", 3, "user", "message 3", nil, nil, nil, false, nil, nil, rec.Timestamp).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO messages`).
		WithArgs("s1", 3, "assistant", "reply", "greeting", 0.9, `{"email":"a@b.com"}`, true,
			sqlmock.AnyArg(), "none", rec.Timestamp).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, sink.Write(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_WriteStoresConfirmedBooking(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sink := NewPostgresSinkFromDB(db)
	rec := record("s1", 4)
	rec.TaskState = types.TaskDone
	rec.Booking = &types.Booking{
		ReferenceID: "ABC12345",
		Details: types.Entities{
			"name": "Jane Doe", "email": "jane@example.com", "phone": "555-123-4567",
			"service_type": "Product Demo", "date": "next Tuesday", "time": "3pm",
		},
		ConfirmedAt: rec.Timestamp,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO conversations`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO messages`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO messages`).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(`INSERT INTO appointments`).
		WithArgs("ABC12345", "s1", "u", "Jane Doe", "jane@example.com", "555-123-4567",
			"Product Demo", "next Tuesday", "3pm", nil, sqlmock.AnyArg(), rec.Timestamp).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, sink.Write(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_BookingFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sink := NewPostgresSinkFromDB(db)
	rec := record("s1", 4)
	rec.Booking = &types.Booking{ReferenceID: "ABC12345", Details: types.Entities{"name": "Jane"}}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO conversations`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO messages`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO messages`).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(`INSERT INTO appointments`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = sink.Write(context.Background(), rec)
	assert.ErrorContains(t, err, "insert appointment")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_WriteRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sink := NewPostgresSinkFromDB(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO conversations`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO messages`).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err = sink.Write(context.Background(), record("s1", 1))
	assert.ErrorContains(t, err, "insert user message")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_Migrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS conversations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, NewPostgresSinkFromDB(db).Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresSink_RequiresDSN(t *testing.T) {
	_, err := NewPostgresSink(context.Background(), DefaultPostgresConfig())
	assert.Error(t, err)
}
