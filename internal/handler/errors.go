// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/webtec/internal/middleware"
	"github.com/hitoshi/webtec/internal/model"
)

// maxBodyBytes はリクエストボディの上限サイズ。
const maxBodyBytes = 1 << 20

// decodeJSON はリクエストボディをvにデコードする。
// 空ボディ・不正なJSONはINVALID_REQUESTを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return model.NewInvalidRequestError("ボディが空です")
		}
		return model.NewInvalidRequestError(err.Error())
	}
	return nil
}

// decodeObject はリクエストボディをJSONオブジェクトとしてデコードする。
// 配列・文字列などオブジェクト以外はINVALID_REQUESTを返す。
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	var fields map[string]any
	if err := decodeJSON(w, r, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, model.NewInvalidRequestError("JSONオブジェクトを指定してください")
	}
	return fields, nil
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidPagination,
		model.ErrCodeInvalidEmail, model.ErrCodeInvalidPrice, model.ErrCodeMissingVoter:
		return http.StatusBadRequest
	case model.ErrCodeInvalidCollection, model.ErrCodeItemNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateItem:
		return http.StatusConflict
	case model.ErrCodePaymentFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
