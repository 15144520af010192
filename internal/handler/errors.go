package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/rohlikhub/internal/account"
	"github.com/hitoshi/rohlikhub/internal/middleware"
	"github.com/hitoshi/rohlikhub/internal/model"
	"github.com/hitoshi/rohlikhub/internal/rohlik"
)

// toAPIError はファサードやショップクライアントのエラーをAPIErrorに変換する。
// 変換できないエラーはnilを返す。
func toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var invalid *rohlik.InvalidCredentialsError
	if errors.As(err, &invalid) {
		return model.NewInvalidCredentialsError(invalid.Message)
	}
	var unknown *rohlik.UnknownAuthError
	if errors.As(err, &unknown) {
		return model.NewAuthFailedError(unknown.Message)
	}

	var notFound *account.ProductNotFoundError
	if errors.As(err, &notFound) {
		return model.NewProductNotFoundError(notFound.Query)
	}

	switch {
	case errors.Is(err, account.ErrNoSnapshot):
		return model.NewSnapshotNotReadyError()
	case errors.Is(err, account.ErrInvalidQuantity),
		errors.Is(err, account.ErrEmptyEntry),
		errors.Is(err, rohlik.ErrMissingShoppingListID):
		return model.NewInvalidRequestError(err.Error())
	}

	var reqFailed *rohlik.APIRequestFailedError
	if errors.As(err, &reqFailed) || errors.Is(err, rohlik.ErrRequestFailed) || errors.Is(err, account.ErrNotAddedToCart) {
		return model.NewUpstreamUnavailableError(err.Error())
	}
	return nil
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeAuthFailed, model.ErrCodeUpstreamUnavailable:
		return http.StatusBadGateway
	case model.ErrCodeProductNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeSnapshotNotReady:
		return http.StatusServiceUnavailable
	case model.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError はファサードから返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if apiErr := toAPIError(err); apiErr != nil {
		status := mapAPIErrorToHTTPStatus(apiErr)
		if status >= http.StatusInternalServerError {
			logger.Error("ショップ呼び出しに失敗しました",
				slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
				slog.String("code", apiErr.Code),
				slog.String("error", err.Error()),
			)
		}
		middleware.WriteErrorResponse(w, status, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	logger.Error("internal server error",
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// writeInvalidRequest は400レスポンスを書き込む。
func writeInvalidRequest(w http.ResponseWriter, reason string) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(reason))
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
