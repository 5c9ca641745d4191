package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-persist/internal/persistence"
)

func TestWriteRunError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		hidden     string
	}{
		{
			name:       "unauthorised",
			err:        persistence.Unauthorised("missing schema:migrate"),
			wantStatus: http.StatusForbidden,
			wantCode:   ErrCodeForbidden,
		},
		{
			name: "failure hides cause",
			err: &persistence.Failure{
				Op:       "api.schema.migrate",
				Attempts: 1,
				Err:      errors.New("no such table: audit_logs; dsn=user:secret@tcp(db)"),
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeInternal,
			hidden:     "secret",
		},
		{
			name:       "plain error",
			err:        errors.New("database is locked"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeInternal,
			hidden:     "locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeRunError(rec, tt.err)

			require.Equal(t, tt.wantStatus, rec.Code)
			var body Error
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Code)
			if tt.hidden != "" {
				assert.Equal(t, internalErrorMessage, body.Message)
				assert.NotContains(t, body.Message, tt.hidden)
			}
		})
	}
}
