package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		kind   string
		status int
	}{
		{ErrUnauthenticated, KindUnauthenticated, http.StatusUnauthorized},
		{ErrForbidden, KindForbidden, http.StatusForbidden},
		{ErrUserDisabled, KindUserDisabled, http.StatusForbidden},
		{ErrCompanyDisabled, KindCompanyDisabled, http.StatusForbidden},
		{ErrNotFound, KindNotFound, http.StatusNotFound},
		{ErrSubjectNotProvisioned, KindSubjectNotProvisioned, http.StatusNotFound},
		{Invalid("items must not be empty"), KindValidation, http.StatusBadRequest},
		{ErrStoreUnavailable, KindStoreUnavailable, http.StatusInternalServerError},
		{errors.New("boom"), KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			wrapped := fmt.Errorf("handler: %w", tc.err)
			assert.Equal(t, tc.kind, KindOf(wrapped))
			assert.Equal(t, tc.status, HTTPStatus(wrapped))
		})
	}
}

func TestMissingReferencesSortsAndDedupes(t *testing.T) {
	err := MissingReferences("products", []int64{9, 3, 9, 1})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, []int64{1, 3, 9}, MissingIDs(err))
	assert.Contains(t, err.Error(), "[1, 3, 9]")
}

func TestStoreKeepsExistingKind(t *testing.T) {
	assert.ErrorIs(t, Store(NotFound("client", 4)), ErrNotFound)
	assert.NotErrorIs(t, Store(NotFound("client", 4)), ErrStoreUnavailable)

	wrapped := Store(errors.New("conn reset"))
	assert.ErrorIs(t, wrapped, ErrStoreUnavailable)
	assert.Equal(t, KindStoreUnavailable, KindOf(wrapped))
	assert.NoError(t, Store(nil))
}
