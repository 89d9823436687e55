package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/webtec/internal/middleware"
	"github.com/hitoshi/webtec/internal/model"
)

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewUnauthorizedError(), http.StatusUnauthorized},
		{model.NewInvalidRequestError("x"), http.StatusBadRequest},
		{model.NewInvalidPaginationError("x"), http.StatusBadRequest},
		{model.NewInvalidEmailError(), http.StatusBadRequest},
		{model.NewInvalidPriceError(), http.StatusBadRequest},
		{model.NewMissingVoterError(), http.StatusBadRequest},
		{model.NewInvalidCollectionError("x"), http.StatusNotFound},
		{model.NewItemNotFoundError("x"), http.StatusNotFound},
		{model.NewDuplicateItemError("x"), http.StatusConflict},
		{model.NewPaymentFailedError(), http.StatusBadGateway},
		{model.NewInternalError(), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.err.Code, got, tt.want)
		}
	}
}

// TestHandleServiceError_WrappedAPIError はラップされたAPIErrorも変換されることを検証する。
func TestHandleServiceError_WrappedAPIError(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, fmt.Errorf("context: %w", model.NewItemNotFoundError("p1")))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	var body middleware.ErrorResponseBody
	json.NewDecoder(w.Body).Decode(&body)
	if body.Code != model.ErrCodeItemNotFound {
		t.Errorf("code = %q", body.Code)
	}
}

// TestHandleServiceError_UnknownError は詳細を返さず500になることを検証する。
func TestHandleServiceError_UnknownError(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, errors.New("pq: password authentication failed"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Errorf("internal error detail leaked: %s", w.Body.String())
	}
	var body middleware.ErrorResponseBody
	json.NewDecoder(w.Body).Decode(&body)
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
}

func TestDecodeObject(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"オブジェクト", `{"a":1}`, false},
		{"空ボディ", ``, true},
		{"不正なJSON", `{"a":`, true},
		{"配列", `[1,2]`, true},
		{"null", `null`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			_, err := decodeObject(httptest.NewRecorder(), req)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			var apiErr *model.APIError
			if err != nil && (!errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidRequest) {
				t.Errorf("err = %v, want INVALID_REQUEST", err)
			}
		})
	}
}
