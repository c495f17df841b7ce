package providers

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/intexuraos/agents/internal/errors"
)

func TestToServiceError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantCode   errors.Code
		wantStatus int
	}{
		{
			name:       "not found stays not found",
			err:        NewError("notion", CodeNotFound, "database missing", nil),
			wantCode:   errors.CodeNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "quota becomes rate limited",
			err:        NewError("google-calendar", CodeQuotaExceeded, "quota exceeded", nil),
			wantCode:   errors.CodeRateLimited,
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "token error is downstream",
			err:        NewError("linear", CodeTokenError, "invalid api token", nil),
			wantCode:   errors.CodeDownstream,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "network failure is downstream",
			err:        NetworkError("linear", stderrors.New("dial tcp: timeout")),
			wantCode:   errors.CodeDownstream,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "plain error is internal",
			err:        stderrors.New("unexpected"),
			wantCode:   errors.CodeInternal,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		got := ToServiceError(tc.err)
		if got.Code != tc.wantCode {
			t.Errorf("%s: code = %s, want %s", tc.name, got.Code, tc.wantCode)
		}
		if got.HTTPStatus != tc.wantStatus {
			t.Errorf("%s: status = %d, want %d", tc.name, got.HTTPStatus, tc.wantStatus)
		}
	}
}

func TestToServiceErrorDetails(t *testing.T) {
	got := ToServiceError(NewError("linear", CodeInvalidRequest, "bad mutation", nil))
	if got.Details["provider"] != "linear" {
		t.Fatalf("provider detail = %v", got.Details["provider"])
	}
	if got.Details["providerCode"] != "INVALID_REQUEST" {
		t.Fatalf("providerCode detail = %v", got.Details["providerCode"])
	}
}
