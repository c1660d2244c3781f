// api/store/user_store_test.go
package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"pulsestream/api/models"
)

func newMockUserStore(t *testing.T) (*UserStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewUserStore(db), mock
}

func TestCreateUser(t *testing.T) {
	st, mock := newMockUserStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("ops@example.com", []byte("hashed")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "created_at", "updated_at"}).
			AddRow(1, "ops@example.com", now, now))

	user, err := st.CreateUser(context.Background(), "ops@example.com", []byte("hashed"))
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID != 1 || user.Email != "ops@example.com" {
		t.Errorf("user = %+v", user)
	}
}

func TestCreateUserEmailTaken(t *testing.T) {
	st, mock := newMockUserStore(t)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("ops@example.com", []byte("hashed")).
		WillReturnError(&pq.Error{Code: "23505"})

	if _, err := st.CreateUser(context.Background(), "ops@example.com", []byte("hashed")); !errors.Is(err, models.ErrEmailTaken) {
		t.Fatalf("error = %v, want ErrEmailTaken", err)
	}
}

func TestGetUserByEmailNotFound(t *testing.T) {
	st, mock := newMockUserStore(t)

	mock.ExpectQuery("SELECT id, email, hashed_password").
		WithArgs("missing@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "hashed_password", "created_at", "updated_at"}))

	if _, err := st.GetUserByEmail(context.Background(), "missing@example.com"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
