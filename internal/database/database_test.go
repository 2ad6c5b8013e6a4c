package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func Test_mapError(t *testing.T) {
	otherErr := errors.New("connection refused")

	tcases := []struct {
		name     string
		err      error
		expected error
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: nil,
		},
		{
			name:     "no rows",
			err:      sql.ErrNoRows,
			expected: ErrNotFound,
		},
		{
			name:     "wrapped no rows",
			err:      fmt.Errorf("scan: %w", sql.ErrNoRows),
			expected: ErrNotFound,
		},
		{
			name:     "unique violation",
			err:      &pq.Error{Code: pqUniqueViolation, Constraint: "room_members_room_id_user_id_key"},
			expected: ErrConflict,
		},
		{
			name:     "foreign key violation",
			err:      &pq.Error{Code: pqForeignKeyViolation, Constraint: "messages_reply_to_fkey"},
			expected: ErrNotFound,
		},
		{
			name:     "other error passes through",
			err:      otherErr,
			expected: otherErr,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			err := mapError(tc.err)
			if tc.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func Test_migrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	assert.NoError(t, err, "expected embedded migrations directory")
	assert.NotEmpty(t, entries, "expected at least one migration file")

	up, err := migrations.ReadFile("migrations/000001_init.up.sql")
	assert.NoError(t, err)
	assert.Contains(t, string(up), "UNIQUE (room_id, user_id)", "expected membership uniqueness constraint")
	assert.Contains(t, string(up), "PRIMARY KEY (message_id, user_id)", "expected read mark uniqueness constraint")
}
