package aggregator

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryHandler(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectRecent)).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"data", "captured_at"}).
			AddRow([]byte(`{"total_searches":9}`), captured).
			AddRow([]byte(`{"total_searches":4}`), captured))

	rec := httptest.NewRecorder()
	s.HistoryHandler()(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Snapshots []Snapshot `json:"snapshots"`
		Count     int        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, int64(9), body.Snapshots[0].Stats.TotalSearches)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryHandler_BadLimit(t *testing.T) {
	s, mock := newMockStore(t)

	for _, raw := range []string{"abc", "0", "501"} {
		rec := httptest.NewRecorder()
		s.HistoryHandler()(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit="+raw, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", raw)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryHandler_QueryError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectRecent)).
		WithArgs(defaultHistoryLimit).
		WillReturnError(errors.New("connection reset"))

	rec := httptest.NewRecorder()
	s.HistoryHandler()(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}
