package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeUnwrapsSentinels(t *testing.T) {
	cases := []struct {
		err  error
		code string
		http int
	}{
		{fmt.Errorf("resolve: %w", ErrUnauthenticated), CodeAuthentication, http.StatusUnauthorized},
		{fmt.Errorf("no match between 1 and 2: %w", ErrForbidden), CodeAuthorization, http.StatusForbidden},
		{fmt.Errorf("group 3: %w", ErrNotFound), CodeNotFound, http.StatusNotFound},
		{fmt.Errorf("save message: %w", ErrPersistence), CodePersistence, http.StatusBadGateway},
		{fmt.Errorf("content: %w", ErrValidation), CodeValidation, http.StatusBadRequest},
		{context.DeadlineExceeded, CodePersistence, http.StatusBadGateway},
		{errors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, Code(tc.err), tc.err.Error())
		assert.Equal(t, tc.http, HTTPStatus(tc.err), tc.err.Error())
	}
	assert.Empty(t, Code(nil))
}

func TestMessageHidesStorageDetails(t *testing.T) {
	err := fmt.Errorf("save message: pq: connection refused: %w", ErrPersistence)
	assert.Equal(t, "temporary storage failure, please retry", Message(err))

	err = fmt.Errorf("no match exists between these users: %w", ErrForbidden)
	assert.Equal(t, "no match exists between these users: not authorized", Message(err))
}
