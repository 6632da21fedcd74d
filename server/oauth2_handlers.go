package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-oauth2-framework/internal/utils"
	"github.com/jrsteele09/go-oauth2-framework/oauth2"
	"github.com/jrsteele09/go-oauth2-framework/oauthmodel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const contentTypeJSON = "application/json; charset=utf-8"

// tokenInfoResponse describes an active access token
type tokenInfoResponse struct {
	Active    bool   `json:"active"`
	ClientID  string `json:"client_id"`
	Username  string `json:"username"`
	Scope     string `json:"scope,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	ExpiresAt int64  `json:"exp"`
}

// Authorize handles the authorization request. The resource owner's
// credentials are read from the form body only, never from the query.
func (s *Server) Authorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}

		params := parseAuthorizationParameters(r)
		params.Username = r.PostFormValue("username")
		params.Password = r.PostFormValue("password")

		artifact, err := s.auth.AuthorizationRequest(r.Context(), params)
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		if artifact == nil {
			writeJSONError(w, "access_denied", "invalid username or password", http.StatusUnauthorized)
			return
		}

		if err := s.callbackRedirect(w, r, params, utils.Value(artifact)); err != nil {
			requestLogger(r).Err(err).Msg("authorize: redirect failed")
			writeJSONError(w, "server_error", "failed to redirect to client", http.StatusInternalServerError)
		}
	}
}

// pendingAuthorization is the authorization request a GET on the authorize
// endpoint carried, echoed so the caller can resubmit it with credentials
type pendingAuthorization struct {
	ResponseType string `json:"response_type"`
	ClientID     string `json:"client_id"`
	RedirectURI  string `json:"redirect_uri"`
	Scope        string `json:"scope,omitempty"`
	State        string `json:"state,omitempty"`
}

type pendingAuthorizationResponse struct {
	oauth2.ErrorResponse
	Authorization pendingAuthorization `json:"authorization"`
}

// AuthorizeResume answers a browser landing on the authorize endpoint, for
// example through the return URL of an account email. Credentials are only
// accepted in a POST body, so it reports invalid_request with the pending
// request for the caller to resubmit.
func (s *Server) AuthorizeResume() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := parseAuthorizationParameters(r)

		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusBadRequest, pendingAuthorizationResponse{
			ErrorResponse: oauth2.ErrorResponse{
				Error:            "invalid_request",
				ErrorDescription: "credentials must be sent in a POST body",
			},
			Authorization: pendingAuthorization{
				ResponseType: string(params.ResponseType),
				ClientID:     params.ClientID,
				RedirectURI:  params.RedirectURI,
				Scope:        oauth2.FormatScope(params.Scopes),
				State:        params.State,
			},
		})
	}
}

// Token exchanges a code or resource owner credentials for an access token
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}

		clientID, clientSecret, err := clientCredentials(r)
		if err != nil {
			writeJSONError(w, "invalid_request", "Malformed client credentials", http.StatusBadRequest)
			return
		}

		tokenReq := &oauthmodel.TokenRequest{
			GrantType:    oauth2.GrantType(r.PostFormValue("grant_type")),
			Code:         r.PostFormValue("code"),
			RedirectURI:  r.PostFormValue("redirect_uri"),
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Username:     r.PostFormValue("username"),
			Password:     r.PostFormValue("password"),
			Scopes:       oauth2.ParseScope(r.PostFormValue("scope")),
		}

		tokenResponse, err := s.auth.AccessTokenResponse(r.Context(), tokenReq)
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		if tokenResponse == nil {
			writeJSONError(w, "invalid_grant", "invalid username or password", http.StatusBadRequest)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		writeJSON(w, http.StatusOK, tokenResponse)
	}
}

// TokenInfo reports the claims of the bearer access token presented in the
// Authorization header
func (s *Server) TokenInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accessToken, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="oauth2"`)
			writeJSONError(w, "invalid_request", "Missing or malformed Authorization header", http.StatusUnauthorized)
			return
		}

		decoded, err := s.auth.DecodeAccessToken(r.Context(), accessToken)
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		if decoded == nil {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeJSONError(w, oauthmodel.ErrInvalidToken.Code, oauthmodel.ErrInvalidToken.Description, http.StatusUnauthorized)
			return
		}

		info := tokenInfoResponse{
			Active:    true,
			ClientID:  decoded.ClientID,
			Username:  decoded.Username,
			Scope:     oauth2.FormatScope(decoded.Scopes),
			ExpiresAt: decoded.ExpiresAt.Unix(),
		}
		if !decoded.IssuedAt.IsZero() {
			info.IssuedAt = decoded.IssuedAt.Unix()
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, info)
	}
}

// Helper functions

// callbackRedirect sends the issued artifact to the client's redirect URI:
// a code in the query string, an access token in the fragment.
func (s *Server) callbackRedirect(w http.ResponseWriter, r *http.Request, params *oauthmodel.AuthorizationParameters, artifact string) error {
	u, err := url.Parse(params.RedirectURI)
	if err != nil {
		return errors.Wrap(err, "[callbackRedirect] invalid redirect URI")
	}

	switch params.ResponseType {
	case oauth2.TokenResponseType:
		values := url.Values{}
		values.Set("access_token", artifact)
		values.Set("token_type", oauth2.TokenTypeBearer)
		values.Set("expires_in", strconv.Itoa(int(s.auth.AccessTokenTTL().Seconds())))
		if len(params.Scopes) > 0 {
			values.Set("scope", oauth2.FormatScope(params.Scopes))
		}
		if params.State != "" {
			values.Set("state", params.State)
		}
		u.Fragment = values.Encode()
	default:
		q := u.Query()
		q.Set("code", artifact)
		if params.State != "" {
			q.Set("state", params.State)
		}
		u.RawQuery = q.Encode()
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, u.String(), http.StatusSeeOther)
	return nil
}

// parseAuthorizationParameters extracts the OAuth2 authorization parameters from a parsed form
func parseAuthorizationParameters(r *http.Request) *oauthmodel.AuthorizationParameters {
	return &oauthmodel.AuthorizationParameters{
		ResponseType: oauth2.ResponseType(r.FormValue("response_type")),
		ClientID:     r.FormValue("client_id"),
		RedirectURI:  r.FormValue("redirect_uri"),
		Scopes:       oauth2.ParseScope(r.FormValue("scope")),
		State:        r.FormValue("state"),
	}
}

// clientCredentials reads client_secret_basic credentials, falling back to
// client_secret_post. Basic credentials are form-encoded per RFC 6749 2.3.1.
func clientCredentials(r *http.Request) (string, string, error) {
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		return r.PostFormValue("client_id"), r.PostFormValue("client_secret"), nil
	}

	clientID, err := url.QueryUnescape(clientID)
	if err != nil {
		return "", "", errors.Wrap(err, "[clientCredentials] client_id")
	}
	clientSecret, err = url.QueryUnescape(clientSecret)
	if err != nil {
		return "", "", errors.Wrap(err, "[clientCredentials] client_secret")
	}
	return clientID, clientSecret, nil
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, value, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// writeEngineError maps an engine error onto a response. Protocol errors
// are reported to the caller; anything else is logged and reported as a server error.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	protocolErr, ok := oauthmodel.AsError(err)
	if !ok {
		requestLogger(r).Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSONError(w, "server_error", "internal server error", http.StatusInternalServerError)
		return
	}

	status := http.StatusBadRequest
	switch protocolErr.Code {
	case oauthmodel.ErrInvalidClient.Code:
		status = http.StatusUnauthorized
	case oauthmodel.ErrFunctionNotEnabled.Code:
		status = http.StatusForbidden
	}
	requestLogger(r).Debug().Str("error", protocolErr.Code).Str("path", r.URL.Path).Msg("protocol error")
	writeJSONError(w, protocolErr.Code, protocolErr.Description, status)
}

// writeJSONError writes an OAuth2 error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, oauth2.ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// requestLogger returns the request-scoped logger set by RequestInfoMiddleware
func requestLogger(r *http.Request) *zerolog.Logger {
	return zerolog.Ctx(r.Context())
}
