package engine

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

var errDriverRejected = errors.New("driver rejected statement")

// TestSQLiteDebugStoreSchemaFailureIsWrapped exercises an error path that is
// impractical to trigger against a real sqlite file (a driver that rejects
// schema creation outright), using a mocked database/sql driver instead.
func TestSQLiteDebugStoreSchemaFailureIsWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("unexpected error creating sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(".*").WillReturnError(errDriverRejected)

	_, err = newSQLiteDebugStoreFromDB(db)
	if err == nil {
		t.Fatalf("expected schema creation failure to surface as an error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestSQLiteDebugStoreEnableGlobalDebugPropagatesDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("unexpected error creating sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0)) // schema creation
	mock.ExpectExec("INSERT INTO global_debug").WillReturnError(errDriverRejected)

	store, err := newSQLiteDebugStoreFromDB(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.EnableGlobalDebug("rollout"); err == nil {
		t.Fatalf("expected EnableGlobalDebug to propagate the driver error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}
