package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ntugo/ntugo/internal/api/middleware"
	"github.com/ntugo/ntugo/internal/api/models"
	"github.com/ntugo/ntugo/internal/api/response"
	"github.com/ntugo/ntugo/internal/auth"
	"github.com/ntugo/ntugo/internal/verification"
)

// AuthHandler handles account and password-reset endpoints.
type AuthHandler struct {
	authService  *auth.Service
	verification *verification.Service
	logger       zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *auth.Service, verificationService *verification.Service, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		verification: verificationService,
		logger:       logger,
	}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	tokenResp, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			response.BadRequest(w, r, "validation error", fieldErrors(verr.Fields))
		case errors.Is(err, auth.ErrEmailTaken):
			response.Conflict(w, r, "此郵箱已被註冊")
		default:
			h.logger.Error().Err(err).Msg("registration failed")
			response.InternalError(w, r, "註冊失敗，請稍後再試")
		}
		return
	}

	response.Created(w, r, "", authResponse(tokenResp))
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	tokenResp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			response.BadRequest(w, r, "validation error", fieldErrors(verr.Fields))
		case errors.Is(err, auth.ErrInvalidCredentials):
			response.Unauthorized(w, r, "郵箱或密碼錯誤")
		default:
			h.logger.Error().Err(err).Msg("login failed")
			response.InternalError(w, r, "登入失敗，請稍後再試")
		}
		return
	}

	response.OK(w, r, authResponse(tokenResp))
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.GetUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			response.NotFound(w, r, "用戶不存在")
			return
		}
		h.logger.Error().Err(err).Msg("loading current user failed")
		response.InternalError(w, r, "伺服器內部錯誤")
		return
	}
	response.OK(w, r, models.MeResponse{User: user})
}

// SendResetCode handles POST /api/auth/forgot-password/send. Unknown
// addresses get the same answer as registered ones.
func (h *AuthHandler) SendResetCode(w http.ResponseWriter, r *http.Request) {
	var req models.SendCodeInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		response.BadRequest(w, r, "請提供有效的郵箱地址", nil)
		return
	}

	result, err := h.verification.SendCode(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, verification.ErrInvalidEmail):
			response.BadRequest(w, r, "郵箱格式不正確", nil)
		case errors.Is(err, verification.ErrSendRateLimited):
			msg := fmt.Sprintf("發送過於頻繁，請稍後再試（每小時最多 %d 次）", h.verification.MaxSendsPerHour())
			e := response.NewError(r, http.StatusTooManyRequests, models.ErrorCodeTooManyRequests, msg).
				With("rateLimited", true)
			response.Error(w, r, e)
		case errors.Is(err, verification.ErrMailDelivery):
			response.InternalError(w, r, "發送驗證碼失敗，請稍後再試")
		default:
			h.logger.Error().Err(err).Msg("sending reset code failed")
			response.InternalError(w, r, "伺服器內部錯誤")
		}
		return
	}

	response.OK(w, r, models.SendCodeResponse{
		Success:   true,
		Message:   "如果該郵箱已註冊，驗證碼已發送到您的郵箱",
		ExpiresIn: result.ExpiresIn,
	})
}

// VerifyResetCode handles POST /api/auth/forgot-password/verify.
func (h *AuthHandler) VerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyCodeInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "請提供郵箱和驗證碼", nil)
		return
	}

	result, err := h.verification.VerifyCode(r.Context(), req.Email, req.Code)
	if err != nil {
		if msg, ok := verifyMessages[firstMatch(err, verifyErrors)]; ok {
			response.BadRequest(w, r, msg, nil)
			return
		}
		h.logger.Error().Err(err).Msg("verifying reset code failed")
		response.InternalError(w, r, "伺服器內部錯誤")
		return
	}

	response.OK(w, r, models.VerifyCodeResponse{
		Success:    true,
		Message:    "驗證成功",
		Verified:   true,
		ResetToken: result.ResetToken,
	})
}

// ResetPassword handles POST /api/auth/forgot-password/reset.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "請提供所有必要欄位", nil)
		return
	}

	err := h.verification.ResetPassword(r.Context(), verification.ResetRequest{
		Email:           req.Email,
		ResetToken:      req.ResetToken,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		if msg, ok := resetMessages[firstMatch(err, resetErrors)]; ok {
			response.BadRequest(w, r, msg, nil)
			return
		}
		h.logger.Error().Err(err).Msg("password reset failed")
		response.InternalError(w, r, "重置密碼失敗，請稍後再試")
		return
	}

	response.OK(w, r, models.StatusResponse{Success: true, Message: "密碼重置成功，請使用新密碼登入"})
}

var (
	verifyErrors = []error{
		verification.ErrMissingFields,
		verification.ErrInvalidEmail,
		verification.ErrInvalidCode,
		verification.ErrCodeMismatch,
		verification.ErrCodeExpired,
		verification.ErrTooManyAttempts,
	}
	verifyMessages = map[error]string{
		verification.ErrMissingFields:   "請提供郵箱和驗證碼",
		verification.ErrInvalidEmail:    "郵箱格式不正確",
		verification.ErrInvalidCode:     "驗證碼格式不正確（應為 6 位數字）",
		verification.ErrCodeMismatch:    "驗證碼錯誤或已失效",
		verification.ErrCodeExpired:     "驗證碼已過期，請重新發送",
		verification.ErrTooManyAttempts: "驗證嘗試次數過多，請重新發送驗證碼",
	}

	resetErrors = []error{
		verification.ErrMissingFields,
		verification.ErrPasswordTooShort,
		verification.ErrPasswordMismatch,
		verification.ErrInvalidResetToken,
		verification.ErrResetTokenExpired,
		verification.ErrUserCannotReset,
	}
	resetMessages = map[error]string{
		verification.ErrMissingFields:     "請提供所有必要欄位",
		verification.ErrPasswordTooShort:  "密碼長度至少需要 6 個字符",
		verification.ErrPasswordMismatch:  "兩次輸入的密碼不一致",
		verification.ErrInvalidResetToken: "無效或已過期的重置令牌，請重新申請",
		verification.ErrResetTokenExpired: "重置令牌已過期，請重新申請",
		verification.ErrUserCannotReset:   "用戶不存在或無法重置密碼",
	}
)

// firstMatch returns the first candidate err wraps, or nil.
func firstMatch(err error, candidates []error) error {
	for _, c := range candidates {
		if errors.Is(err, c) {
			return c
		}
	}
	return nil
}

func fieldErrors(errs []auth.FieldError) []models.FieldError {
	out := make([]models.FieldError, len(errs))
	for i, e := range errs {
		out[i] = models.FieldError{Field: e.Field, Message: e.Message, Code: e.Code}
	}
	return out
}

func authResponse(t *auth.TokenResponse) models.AuthResponse {
	return models.AuthResponse{
		Success:   true,
		Token:     t.AccessToken,
		ExpiresAt: models.Timestamp(t.ExpiresAt),
		User:      t.User,
	}
}
