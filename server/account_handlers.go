package server

import (
	"net/http"

	"github.com/jrsteele09/go-oauth2-framework/account"
)

type statusResponse struct {
	Status string `json:"status"`
}

type resetPasswordResponse struct {
	Reset     bool   `json:"reset"`
	ReturnURL string `json:"return_url,omitempty"`
}

type resetPasswordFormResponse struct {
	Token  string `json:"token"`
	Method string `json:"method"`
	Action string `json:"action"`
}

type verifyEmailResponse struct {
	Verified bool `json:"verified"`
}

// ForgotPassword starts a password reset. The response is the same whether
// or not an email went out, so callers cannot enumerate accounts.
func (s *Server) ForgotPassword() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}

		resume := parseAuthorizationParameters(r)
		sent, err := s.account.ForgotPasswordRequest(r.Context(), &account.ForgotPasswordParameters{
			ClientID: resume.ClientID,
			Username: r.PostFormValue("username"),
			Resume:   *resume,
		})
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}

		requestLogger(r).Debug().Bool("sent", sent).Msg("forgot password")
		writeJSON(w, http.StatusAccepted, statusResponse{Status: "accepted"})
	}
}

// ResetPassword sets a new password using the token from the reset email
func (s *Server) ResetPassword() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}

		result, err := s.account.ResetPasswordRequest(r.Context(), r.PostFormValue("token"), r.PostFormValue("password"))
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		if !result.Reset {
			writeJSONError(w, "invalid_request", "password was not reset", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, resetPasswordResponse{Reset: true, ReturnURL: result.ReturnURL})
	}
}

// ResetPasswordForm answers the link in the reset email. The token is
// checked, not consumed, and echoed with the endpoint that takes the new password.
func (s *Server) ResetPasswordForm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawToken := r.URL.Query().Get("token")
		if rawToken == "" {
			writeJSONError(w, "invalid_request", "missing token", http.StatusBadRequest)
			return
		}
		if err := s.account.CheckResetPasswordToken(r.Context(), rawToken); err != nil {
			s.writeEngineError(w, r, err)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, resetPasswordFormResponse{
			Token:  rawToken,
			Method: http.MethodPost,
			Action: RouteResetPassword,
		})
	}
}

// Register creates an account and emails a verification link
func (s *Server) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}

		resume := parseAuthorizationParameters(r)
		result, err := s.account.RegisterRequest(r.Context(), &account.RegisterParameters{
			ClientID: resume.ClientID,
			Email:    r.PostFormValue("email"),
			Username: r.PostFormValue("username"),
			Password: r.PostFormValue("password"),
			Resume:   *resume,
		})
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		if result == account.RegisterRejected {
			writeJSONError(w, "registration_rejected", "registration was rejected", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, statusResponse{Status: result.String()})
	}
}

// VerifyEmail consumes the link from the verification email. When the
// token carries a return URL the user is sent back to the authorization page.
func (s *Server) VerifyEmail() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.account.EmailVerificationRequest(r.Context(), r.URL.Query().Get("token"))
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		if !result.Verified {
			writeJSONError(w, "invalid_request", "email was not verified", http.StatusBadRequest)
			return
		}
		if result.ReturnURL != "" {
			http.Redirect(w, r, result.ReturnURL, http.StatusSeeOther)
			return
		}
		writeJSON(w, http.StatusOK, verifyEmailResponse{Verified: true})
	}
}
