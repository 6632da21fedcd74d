package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-oauth2-framework/auth"
	"github.com/jrsteele09/go-oauth2-framework/clients"
	fakeclientrepo "github.com/jrsteele09/go-oauth2-framework/clients/fakerepo"
	"github.com/jrsteele09/go-oauth2-framework/internal/utils"
	"github.com/jrsteele09/go-oauth2-framework/mail"
	"github.com/jrsteele09/go-oauth2-framework/oauth2"
	"github.com/jrsteele09/go-oauth2-framework/oauthmodel"
	"github.com/jrsteele09/go-oauth2-framework/oauthmodel/memmodel"
	"github.com/jrsteele09/go-oauth2-framework/token"
	fakeuserrepo "github.com/jrsteele09/go-oauth2-framework/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	secretStr        = "1234"
	testClientID     = "c1"
	testClientSecret = "test-secret-1"
	testRedirectURI  = "http://example.com/cb"
	testState        = "s1"
	testUsername     = "demo"
	testUserPassword = "123456"
)

// recordingModel records the order of credential and lookup calls and can
// be told to fail a capability
type recordingModel struct {
	oauthmodel.Model

	mu       sync.Mutex
	calls    []string
	failWith map[string]error
}

func (m *recordingModel) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.failWith[call]
}

func (m *recordingModel) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *recordingModel) FindClient(ctx context.Context, clientID string) (*clients.Client, error) {
	if err := m.record("FindClient"); err != nil {
		return nil, err
	}
	return m.Model.FindClient(ctx, clientID)
}

func (m *recordingModel) ValidateCredentials(ctx context.Context, clientID, username, password string) (bool, error) {
	if err := m.record("ValidateCredentials"); err != nil {
		return false, err
	}
	return m.Model.ValidateCredentials(ctx, clientID, username, password)
}

func (m *recordingModel) GenerateCode(ctx context.Context, clientID, username string, scopes []string) (string, error) {
	if err := m.record("GenerateCode"); err != nil {
		return "", err
	}
	return m.Model.GenerateCode(ctx, clientID, username, scopes)
}

func (m *recordingModel) GenerateAccessToken(ctx context.Context, clientID, username string, scopes []string) (string, error) {
	if err := m.record("GenerateAccessToken"); err != nil {
		return "", err
	}
	return m.Model.GenerateAccessToken(ctx, clientID, username, scopes)
}

func (m *recordingModel) ValidateCode(ctx context.Context, code string) (*token.Token, error) {
	if err := m.record("ValidateCode"); err != nil {
		return nil, err
	}
	return m.Model.ValidateCode(ctx, code)
}

// testFixture holds all test dependencies
type testFixture struct {
	now     time.Time
	codec   *token.Codec
	memory  *memmodel.Model
	model   *recordingModel
	service *auth.AuthorizationService
}

// setupTestFixture creates a new test fixture with client c1 and verified user demo
func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	f.codec = token.NewCodec(token.NewHMACSigner(secretStr), token.WithNowFunc(func() time.Time { return f.now }))
	f.memory = memmodel.New(
		fakeclientrepo.NewFakeClientRepo(),
		fakeuserrepo.NewFakeUserRepo(),
		mail.NewOutbox(),
		token.NewGrantIssuer(f.codec),
	)
	f.model = &recordingModel{Model: f.memory, failWith: map[string]error{}}

	service, err := auth.NewAuthorizationService(f.model)
	require.NoError(t, err)
	f.service = service

	f.createTestClient(t, &clients.Client{
		ID:           testClientID,
		Secret:       testClientSecret,
		RedirectURIs: []string{testRedirectURI},
		Scopes:       []string{"read"},
	})
	require.NoError(t, f.memory.AddUser(testClientID, "demo@example.com", testUsername, testUserPassword, true))
	return f
}

func (f *testFixture) createTestClient(t *testing.T, client *clients.Client) {
	t.Helper()
	require.NoError(t, f.memory.AddClient(client))
}

func defaultAuthorizationParameters() *oauthmodel.AuthorizationParameters {
	return &oauthmodel.AuthorizationParameters{
		ResponseType: oauth2.CodeResponseType,
		ClientID:     testClientID,
		RedirectURI:  testRedirectURI,
		Scopes:       []string{"read"},
		State:        testState,
		Username:     testUsername,
		Password:     testUserPassword,
	}
}

func codeTokenRequest(code string) *oauthmodel.TokenRequest {
	return &oauthmodel.TokenRequest{
		GrantType:    oauth2.AuthorizationCodeGrant,
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
	}
}

func (f *testFixture) authorizeCode(t *testing.T) string {
	t.Helper()
	code, err := f.service.AuthorizationRequest(context.Background(), defaultAuthorizationParameters())
	require.NoError(t, err)
	require.NotNil(t, code)
	return *code
}

func TestNewAuthorizationService_RequiresModel(t *testing.T) {
	_, err := auth.NewAuthorizationService(nil)
	require.Error(t, err)
}

// TestAuthorizationCodeFlow walks the code grant end to end
func TestAuthorizationCodeFlow(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	code := f.authorizeCode(t)
	require.NotEmpty(t, code)

	accessToken, err := f.service.AccessTokenRequest(ctx, codeTokenRequest(code))
	require.NoError(t, err)
	require.NotNil(t, accessToken)

	decoded, err := f.service.DecodeAccessToken(ctx, *accessToken)
	require.NoError(t, err)
	require.NotNil(t, decoded)
	require.Equal(t, testUsername, decoded.Username)
	require.Equal(t, testClientID, decoded.ClientID)
	require.Equal(t, []string{"read"}, decoded.Scopes)
}

// TestAuthorizationCodeFlow_CodeIsAuthoritative checks request parameters cannot override the code
func TestAuthorizationCodeFlow_CodeIsAuthoritative(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	code := f.authorizeCode(t)

	request := codeTokenRequest(code)
	request.Username = "admin"
	request.Password = "whatever"
	request.Scopes = []string{"read", "write", "admin"}

	accessToken, err := f.service.AccessTokenRequest(ctx, request)
	require.NoError(t, err)
	require.NotNil(t, accessToken)

	decoded, err := f.service.DecodeAccessToken(ctx, *accessToken)
	require.NoError(t, err)
	require.Equal(t, testUsername, decoded.Username)
	require.Equal(t, testClientID, decoded.ClientID)
	require.Equal(t, []string{"read"}, decoded.Scopes)
}

func TestAuthorizationRequest_TokenResponseType(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	params := defaultAuthorizationParameters()
	params.ResponseType = oauth2.TokenResponseType

	accessToken, err := f.service.AuthorizationRequest(ctx, params)
	require.NoError(t, err)
	require.NotNil(t, accessToken)

	valid, err := f.service.ValidateAccessToken(ctx, *accessToken)
	require.NoError(t, err)
	require.True(t, valid)
	require.Equal(t, []string{"FindClient", "ValidateCredentials", "GenerateAccessToken"}, f.model.Calls())
}

func TestAuthorizationRequest_EmptyScopesAllowed(t *testing.T) {
	f := setupTestFixture(t)

	params := defaultAuthorizationParameters()
	params.Scopes = nil

	code, err := f.service.AuthorizationRequest(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, code)
}

// TestAuthorizationRequest_WrongCredentials is an authentication rejection, not an error
func TestAuthorizationRequest_WrongCredentials(t *testing.T) {
	f := setupTestFixture(t)

	params := defaultAuthorizationParameters()
	params.Password = "wrong"

	code, err := f.service.AuthorizationRequest(context.Background(), params)
	require.NoError(t, err)
	require.Nil(t, code)
	require.Equal(t, []string{"FindClient", "ValidateCredentials"}, f.model.Calls(), "no artifact may be minted")
}

func TestAuthorizationRequest_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(p *oauthmodel.AuthorizationParameters)
		wantErr error
	}{
		{
			name:    "unregistered client",
			modify:  func(p *oauthmodel.AuthorizationParameters) { p.ClientID = "ghost" },
			wantErr: oauthmodel.ErrInvalidClient,
		},
		{
			name:    "unregistered redirect uri",
			modify:  func(p *oauthmodel.AuthorizationParameters) { p.RedirectURI = "http://evil.com/cb" },
			wantErr: oauthmodel.ErrInvalidRedirectURI,
		},
		{
			name:    "scope not allowed",
			modify:  func(p *oauthmodel.AuthorizationParameters) { p.Scopes = []string{"read", "admin"} },
			wantErr: oauthmodel.ErrInvalidScope,
		},
		{
			name:    "unsupported response type",
			modify:  func(p *oauthmodel.AuthorizationParameters) { p.ResponseType = "id_token" },
			wantErr: oauthmodel.ErrInvalidResponseType,
		},
		{
			name: "unsupported response type with unknown client",
			modify: func(p *oauthmodel.AuthorizationParameters) {
				p.ResponseType = ""
				p.ClientID = "ghost"
			},
			wantErr: oauthmodel.ErrInvalidResponseType,
		},
		{
			name: "redirect uri checked before wrong credentials",
			modify: func(p *oauthmodel.AuthorizationParameters) {
				p.RedirectURI = "http://evil.com/cb"
				p.Password = "wrong"
			},
			wantErr: oauthmodel.ErrInvalidRedirectURI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			params := defaultAuthorizationParameters()
			tt.modify(params)

			code, err := f.service.AuthorizationRequest(context.Background(), params)
			require.ErrorIs(t, err, tt.wantErr)
			require.Nil(t, code)
			require.Equal(t, []string{"FindClient"}, f.model.Calls(), "credentials must not be checked")
		})
	}
}

func TestAuthorizationRequest_ModelFailurePropagates(t *testing.T) {
	f := setupTestFixture(t)
	dbErr := errors.New("database unavailable")
	f.model.failWith["ValidateCredentials"] = dbErr

	code, err := f.service.AuthorizationRequest(context.Background(), defaultAuthorizationParameters())
	require.ErrorIs(t, err, dbErr)
	require.Nil(t, code)

	_, isProtocolErr := oauthmodel.AsError(err)
	require.False(t, isProtocolErr)
}

func TestAccessTokenRequest_PasswordGrant(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	request := &oauthmodel.TokenRequest{
		GrantType:   oauth2.PasswordGrant,
		RedirectURI: testRedirectURI,
		ClientID:    testClientID,
		Username:    testUsername,
		Password:    testUserPassword,
		Scopes:      []string{"read"},
	}

	accessToken, err := f.service.AccessTokenRequest(ctx, request)
	require.NoError(t, err)
	require.NotNil(t, accessToken)

	decoded, err := f.service.DecodeAccessToken(ctx, *accessToken)
	require.NoError(t, err)
	require.Equal(t, testUsername, decoded.Username)
	require.Equal(t, []string{"read"}, decoded.Scopes)

	request.Password = "wrong"
	accessToken, err = f.service.AccessTokenRequest(ctx, request)
	require.NoError(t, err)
	require.Nil(t, accessToken)

	request.Password = testUserPassword
	request.Scopes = []string{"admin"}
	_, err = f.service.AccessTokenRequest(ctx, request)
	require.ErrorIs(t, err, oauthmodel.ErrInvalidScope)
}

func TestAccessTokenRequest_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(f *testFixture, r *oauthmodel.TokenRequest)
		wantErr   error
		wantCalls []string
	}{
		{
			name:      "unsupported grant type",
			modify:    func(_ *testFixture, r *oauthmodel.TokenRequest) { r.GrantType = "client_credentials" },
			wantErr:   oauthmodel.ErrInvalidGrantType,
			wantCalls: []string{"FindClient"},
		},
		{
			name:      "unregistered client",
			modify:    func(_ *testFixture, r *oauthmodel.TokenRequest) { r.ClientID = "ghost" },
			wantErr:   oauthmodel.ErrInvalidClient,
			wantCalls: []string{"FindClient"},
		},
		{
			name:      "unregistered redirect uri",
			modify:    func(_ *testFixture, r *oauthmodel.TokenRequest) { r.RedirectURI = "http://evil.com/cb" },
			wantErr:   oauthmodel.ErrInvalidRedirectURI,
			wantCalls: []string{"FindClient"},
		},
		{
			name: "unregistered redirect uri on password grant",
			modify: func(_ *testFixture, r *oauthmodel.TokenRequest) {
				r.GrantType = oauth2.PasswordGrant
				r.RedirectURI = "http://evil.com/cb"
				r.Username = testUsername
				r.Password = testUserPassword
			},
			wantErr:   oauthmodel.ErrInvalidRedirectURI,
			wantCalls: []string{"FindClient"},
		},
		{
			name:      "garbage code",
			modify:    func(_ *testFixture, r *oauthmodel.TokenRequest) { r.Code = "not-a-code" },
			wantErr:   oauthmodel.ErrInvalidCode,
			wantCalls: []string{"FindClient", "ValidateCode"},
		},
		{
			name: "access token presented as code",
			modify: func(f *testFixture, r *oauthmodel.TokenRequest) {
				accessToken, err := f.codec.Encode(token.KindAccess, token.Claims{ClientID: testClientID, Username: testUsername}, time.Hour)
				require.NoError(t, err)
				r.Code = accessToken
			},
			wantErr:   oauthmodel.ErrInvalidCode,
			wantCalls: []string{"FindClient", "ValidateCode"},
		},
		{
			name: "expired code",
			modify: func(f *testFixture, r *oauthmodel.TokenRequest) {
				f.now = f.now.Add(11 * time.Minute)
			},
			wantErr:   oauthmodel.ErrInvalidCode,
			wantCalls: []string{"FindClient", "ValidateCode"},
		},
		{
			name: "code issued to another client",
			modify: func(f *testFixture, r *oauthmodel.TokenRequest) {
				f.createTestClient(t, &clients.Client{ID: "c2", Secret: "s2", RedirectURIs: []string{testRedirectURI}})
				r.ClientID = "c2"
				r.ClientSecret = "s2"
			},
			wantErr:   oauthmodel.ErrInvalidCode,
			wantCalls: []string{"FindClient", "ValidateCode"},
		},
		{
			name:      "wrong client secret",
			modify:    func(_ *testFixture, r *oauthmodel.TokenRequest) { r.ClientSecret = "wrong" },
			wantErr:   oauthmodel.ErrInvalidClientSecret,
			wantCalls: []string{"FindClient", "ValidateCode"},
		},
		{
			name:      "client secret prefix",
			modify:    func(_ *testFixture, r *oauthmodel.TokenRequest) { r.ClientSecret = testClientSecret[:len(testClientSecret)-1] },
			wantErr:   oauthmodel.ErrInvalidClientSecret,
			wantCalls: []string{"FindClient", "ValidateCode"},
		},
		{
			name:      "client secret with suffix",
			modify:    func(_ *testFixture, r *oauthmodel.TokenRequest) { r.ClientSecret = testClientSecret + "x" },
			wantErr:   oauthmodel.ErrInvalidClientSecret,
			wantCalls: []string{"FindClient", "ValidateCode"},
		},
		{
			name:      "empty client secret",
			modify:    func(_ *testFixture, r *oauthmodel.TokenRequest) { r.ClientSecret = "" },
			wantErr:   oauthmodel.ErrInvalidClientSecret,
			wantCalls: []string{"FindClient", "ValidateCode"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			request := codeTokenRequest(f.authorizeCode(t))
			f.model.calls = nil
			tt.modify(f, request)

			accessToken, err := f.service.AccessTokenRequest(context.Background(), request)
			require.ErrorIs(t, err, tt.wantErr)
			require.Nil(t, accessToken)
			require.Equal(t, tt.wantCalls, f.model.Calls())
		})
	}
}

func TestAccessTokenResponse(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	request := codeTokenRequest(f.authorizeCode(t))
	request.Scopes = []string{"ignored"}

	response, err := f.service.AccessTokenResponse(ctx, request)
	require.NoError(t, err)
	require.NotNil(t, response)
	require.NotEmpty(t, utils.Value(response.AccessToken))
	require.Equal(t, "bearer", response.TokenType)
	require.Equal(t, 3600, response.ExpiresIn)
	require.Equal(t, "read", response.Scope)

	request = &oauthmodel.TokenRequest{
		GrantType:   oauth2.PasswordGrant,
		RedirectURI: testRedirectURI,
		ClientID:    testClientID,
		Username:    testUsername,
		Password:    "wrong",
	}
	response, err = f.service.AccessTokenResponse(ctx, request)
	require.NoError(t, err)
	require.Nil(t, response)
}

func TestAccessTokenResponse_CustomTTL(t *testing.T) {
	f := setupTestFixture(t)
	service, err := auth.NewAuthorizationService(f.model, auth.WithAccessTokenTTL(15*time.Minute))
	require.NoError(t, err)

	response, err := service.AccessTokenResponse(context.Background(), codeTokenRequest(f.authorizeCode(t)))
	require.NoError(t, err)
	require.Equal(t, 900, response.ExpiresIn)
}

// TestValidateAndDecodeAgree checks validate is true exactly when decode returns a token
func TestValidateAndDecodeAgree(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	code := f.authorizeCode(t)
	accessToken, err := f.service.AccessTokenRequest(ctx, codeTokenRequest(code))
	require.NoError(t, err)

	expiring, err := f.codec.Encode(token.KindAccess, token.Claims{ClientID: testClientID, Username: testUsername}, time.Minute)
	require.NoError(t, err)

	inputs := []string{*accessToken, code, "", "garbage", expiring}
	check := func() {
		for _, raw := range inputs {
			valid, err := f.service.ValidateAccessToken(ctx, raw)
			require.NoError(t, err)
			decoded, err := f.service.DecodeAccessToken(ctx, raw)
			require.NoError(t, err)
			require.Equal(t, valid, decoded != nil, "input %q", raw)
		}
	}

	check()
	valid, err := f.service.ValidateAccessToken(ctx, code)
	require.NoError(t, err)
	require.False(t, valid, "codes are not access tokens")

	f.now = f.now.Add(2 * time.Minute)
	check()
	valid, err = f.service.ValidateAccessToken(ctx, expiring)
	require.NoError(t, err)
	require.False(t, valid)
}

func TestAuthorizationRequest_ConcurrentRequests(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	codes := make([]*string, 20)
	errs := make([]error, 20)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i], errs[i] = f.service.AuthorizationRequest(ctx, defaultAuthorizationParameters())
		}(i)
	}
	wg.Wait()

	for i := range codes {
		require.NoError(t, errs[i])
		require.NotNil(t, codes[i])
	}
}
