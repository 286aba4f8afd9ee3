package authsdk

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseErrorResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		header     http.Header
		body       string
		wantCode   string
		wantRetry  time.Duration
		wantTarget error
	}{
		{
			name:       "credentials",
			status:     http.StatusUnauthorized,
			body:       `{"error":"invalid_credentials","error_description":"invalid username or password"}`,
			wantCode:   ErrorCodeInvalidCredentials,
			wantTarget: ErrInvalidCredentials,
		},
		{
			name:       "rate limited",
			status:     http.StatusTooManyRequests,
			header:     http.Header{"Retry-After": {"42"}},
			body:       `{"error":"rate_limit_exceeded"}`,
			wantCode:   ErrorCodeRateLimited,
			wantRetry:  42 * time.Second,
			wantTarget: ErrRateLimited,
		},
		{
			name:       "not json",
			status:     http.StatusBadGateway,
			body:       `<html>bad gateway</html>`,
			wantCode:   ErrorCodeServerError,
			wantTarget: ErrServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := &http.Response{StatusCode: tt.status, Header: tt.header}
			if resp.Header == nil {
				resp.Header = http.Header{}
			}

			err := parseErrorResponse(resp, []byte(tt.body))
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, tt.status, apiErr.StatusCode)
			require.Equal(t, tt.wantCode, apiErr.Code)
			require.Equal(t, tt.wantRetry, apiErr.RetryAfter)
			require.ErrorIs(t, err, tt.wantTarget)
		})
	}

	require.NoError(t, parseErrorResponse(&http.Response{StatusCode: http.StatusOK}, nil))
}
