package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"yamdb/internal/microservices/http-api/access"
	"yamdb/internal/microservices/http-api/apperr"
	"yamdb/internal/microservices/http-api/dto"
	"yamdb/internal/microservices/http-api/handler"
	"yamdb/internal/microservices/http-api/middleware"
	"yamdb/internal/microservices/http-api/service"
)

var (
	alice = access.Actor{ID: "u-alice", Username: "alice", Role: access.RoleUser}
	bob   = access.Actor{ID: "u-bob", Username: "bob", Role: access.RoleUser}
	mod   = access.Actor{ID: "u-mod", Username: "mod", Role: access.RoleModerator}
	root  = access.Actor{ID: "u-root", Username: "root", Role: access.RoleAdmin}
)

// --- SETUP ---

type testServer struct {
	auth       *MockAuthService
	users      *MockUserService
	categories *MockCategoryService
	titles     *MockTitleService
	reviews    *MockReviewService
	comments   *MockCommentService
	router     *gin.Engine
}

func setupServer(t *testing.T, limiter middleware.Limiter, trustedProxies ...string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &testServer{
		auth:       new(MockAuthService),
		users:      new(MockUserService),
		categories: new(MockCategoryService),
		titles:     new(MockTitleService),
		reviews:    new(MockReviewService),
		comments:   new(MockCommentService),
	}
	for token, actor := range map[string]access.Actor{
		"alice-token": alice, "bob-token": bob, "mod-token": mod, "root-token": root,
	} {
		s.auth.On("ResolveActor", mock.Anything, token).Return(actor, nil).Maybe()
	}
	s.auth.On("ResolveActor", mock.Anything, "stale-token").
		Return(access.Anonymous, fmt.Errorf("%w: token expired", apperr.ErrUnauthenticated)).Maybe()

	s.router = handler.NewRouter(handler.Services{
		Auth:       s.auth,
		Users:      s.users,
		Categories: s.categories,
		Titles:     s.titles,
		Reviews:    s.reviews,
		Comments:   s.comments,
	}, handler.RouterOptions{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		AuthLimiter:    limiter,
		TrustedProxies: trustedProxies,
		RequestTimeout: time.Second,
	})
	return s
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var headers map[string]string
	if token != "" {
		headers = map[string]string{"Authorization": "Bearer " + token}
	}
	return s.doWithHeaders(method, path, headers, body)
}

// doWithHeaders sends a request from httptest's default peer 192.0.2.1.
func (s *testServer) doWithHeaders(method, path string, headers map[string]string, body any) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

var defaultPage = dto.PageQuery{Page: 1, PageSize: 20}

// --- TESTS ---

func TestHealthz(t *testing.T) {
	s := setupServer(t, nil)
	w := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnonymousCanListTitles(t *testing.T) {
	s := setupServer(t, nil)
	rating := 7.0
	page := dto.NewPaginatedResponse([]dto.TitleResponse{
		{ID: 1, Name: "Solaris", Year: 1972, Rating: &rating},
		{ID: 2, Name: "Stalker", Year: 1979},
	}, 2, 1, 20)
	s.titles.On("List", mock.Anything, dto.TitleFilterQuery{PageQuery: defaultPage}).Return(page, nil)

	w := s.do(http.MethodGet, "/api/v1/titles", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 2, body["count"])
	assert.Nil(t, body["next"])
	assert.Nil(t, body["previous"])
	data := body["results"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, 7.0, data[0].(map[string]any)["rating"])
	assert.Nil(t, data[1].(map[string]any)["rating"], "no reviews means null, not zero")
	s.titles.AssertExpectations(t)
}

func TestTitleListBindsFilters(t *testing.T) {
	s := setupServer(t, nil)
	want := dto.TitleFilterQuery{
		PageQuery: dto.PageQuery{Page: 2, PageSize: 5},
		Name:      "sol",
		Year:      1972,
		Category:  "film",
		Genre:     "drama",
	}
	s.titles.On("List", mock.Anything, want).Return(dto.NewPaginatedResponse[dto.TitleResponse](nil, 0, 2, 5), nil)

	w := s.do(http.MethodGet, "/api/v1/titles?name=sol&year=1972&category=film&genre=drama&page=2&page_size=5", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	s.titles.AssertExpectations(t)
}

func TestListLinksNeighbourPages(t *testing.T) {
	s := setupServer(t, nil)
	q := dto.TitleFilterQuery{PageQuery: dto.PageQuery{Page: 2, PageSize: 1}, Genre: "drama"}
	s.titles.On("List", mock.Anything, q).
		Return(dto.NewPaginatedResponse([]dto.TitleResponse{{ID: 2, Name: "Stalker"}}, 3, 2, 1), nil)

	w := s.do(http.MethodGet, "/api/v1/titles?genre=drama&page=2&page_size=1", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 3, body["count"])
	assert.Equal(t, "/api/v1/titles?genre=drama&page=3&page_size=1", body["next"])
	assert.Equal(t, "/api/v1/titles?genre=drama&page=1&page_size=1", body["previous"])
}

func TestPageSizeOutOfRange(t *testing.T) {
	s := setupServer(t, nil)
	w := s.do(http.MethodGet, "/api/v1/titles?page_size=1000", "", nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode(t, w)["fields"].(map[string]any)
	assert.Contains(t, fields, "page_size")
	s.titles.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestAnonymousWritesAreForbidden(t *testing.T) {
	s := setupServer(t, nil)

	tests := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/v1/titles"},
		{http.MethodPatch, "/api/v1/titles/1"},
		{http.MethodDelete, "/api/v1/categories/film"},
		{http.MethodPost, "/api/v1/titles/1/reviews"},
		{http.MethodPatch, "/api/v1/titles/1/reviews/2"},
		{http.MethodPost, "/api/v1/titles/1/reviews/2/comments"},
		{http.MethodPatch, "/api/v1/users/me"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			// an empty body still gets 403, not a validation error
			w := s.do(tt.method, tt.path, "", nil)
			assert.Equal(t, http.StatusForbidden, w.Code)
		})
	}
	s.titles.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	s.reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBadCredentialsAreUnauthorized(t *testing.T) {
	s := setupServer(t, nil)

	w := s.do(http.MethodGet, "/api/v1/titles", "stale-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/titles", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserCannotCreateTitle(t *testing.T) {
	s := setupServer(t, nil)
	req := dto.TitleWriteDTO{Name: "Solaris", Year: 1972}
	s.titles.On("Create", mock.Anything, alice, req).Return(nil, apperr.Forbidden("not allowed to create title"))

	w := s.do(http.MethodPost, "/api/v1/titles", "alice-token", req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminCreatesTitle(t *testing.T) {
	s := setupServer(t, nil)
	req := dto.TitleWriteDTO{Name: "Solaris", Year: 1972, Genre: []string{"drama"}}
	s.titles.On("Create", mock.Anything, root, req).
		Return(&dto.TitleResponse{ID: 10, Name: "Solaris", Year: 1972}, nil)

	w := s.do(http.MethodPost, "/api/v1/titles", "root-token", req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, float64(10), decode(t, w)["id"])
}

func TestReviewCreateThenDuplicate(t *testing.T) {
	s := setupServer(t, nil)
	req := dto.CreateReviewDTO{Text: "good", Score: 7}
	created := &dto.ReviewResponse{ID: 3, Title: 5, Author: "alice", Text: "good", Score: 7}
	s.reviews.On("Create", mock.Anything, alice, int64(5), req).Return(created, nil).Once()
	s.reviews.On("Create", mock.Anything, alice, int64(5), req).
		Return(nil, fmt.Errorf("%w: %w", apperr.ErrConflict, service.ErrDuplicateReview)).Once()

	first := s.do(http.MethodPost, "/api/v1/titles/5/reviews", "alice-token", req)
	second := s.do(http.MethodPost, "/api/v1/titles/5/reviews", "alice-token", req)

	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, "alice", decode(t, first)["author"])
	assert.Equal(t, http.StatusConflict, second.Code)
	s.reviews.AssertExpectations(t)
}

func TestReviewAuthorIsNeverTakenFromBody(t *testing.T) {
	s := setupServer(t, nil)
	s.reviews.On("Create", mock.Anything, alice, int64(5), dto.CreateReviewDTO{Text: "x", Score: 5}).
		Return(&dto.ReviewResponse{ID: 1, Author: "alice"}, nil)

	w := s.do(http.MethodPost, "/api/v1/titles/5/reviews", "alice-token",
		`{"text":"x","score":5,"author":"bob","title":99}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	s.reviews.AssertExpectations(t)
}

func TestReviewPatchPermissions(t *testing.T) {
	s := setupServer(t, nil)
	score := 9
	req := dto.UpdateReviewDTO{Score: &score}
	s.reviews.On("Update", mock.Anything, mod, int64(5), int64(3), req).
		Return(&dto.ReviewResponse{ID: 3, Score: 9}, nil)
	s.reviews.On("Update", mock.Anything, bob, int64(5), int64(3), req).
		Return(nil, apperr.Forbidden("not allowed to update review"))

	assert.Equal(t, http.StatusOK, s.do(http.MethodPatch, "/api/v1/titles/5/reviews/3", "mod-token", req).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPatch, "/api/v1/titles/5/reviews/3", "bob-token", req).Code)
}

func TestReviewOnMissingTitle(t *testing.T) {
	s := setupServer(t, nil)
	s.reviews.On("Create", mock.Anything, alice, int64(404), mock.Anything).Return(nil, apperr.NotFound("title"))

	w := s.do(http.MethodPost, "/api/v1/titles/404/reviews", "alice-token", dto.CreateReviewDTO{Text: "x", Score: 99})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNonNumericIDIsNotFound(t *testing.T) {
	s := setupServer(t, nil)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/titles/abc", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/titles/1/reviews/x", "", nil).Code)
	s.titles.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestValidationErrorCarriesFields(t *testing.T) {
	s := setupServer(t, nil)
	s.reviews.On("Create", mock.Anything, alice, int64(5), dto.CreateReviewDTO{Text: "x", Score: 11}).
		Return(nil, apperr.Validation("score", "must be between 1 and 10"))

	w := s.do(http.MethodPost, "/api/v1/titles/5/reviews", "alice-token", dto.CreateReviewDTO{Text: "x", Score: 11})

	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode(t, w)["fields"].(map[string]any)
	assert.Equal(t, "must be between 1 and 10", fields["score"])
}

func TestMalformedBody(t *testing.T) {
	s := setupServer(t, nil)

	w := s.do(http.MethodPost, "/api/v1/titles/5/reviews", "alice-token", `{"text":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["fields"], "body")

	w = s.do(http.MethodPost, "/api/v1/titles/5/reviews", "alice-token", `{"text":"x","score":"ten"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["fields"], "score")
}

func TestDependencyFailureIsOpaque(t *testing.T) {
	s := setupServer(t, nil)
	s.titles.On("Get", mock.Anything, int64(1)).
		Return(nil, apperr.Dependency("find title", errors.New("dial tcp 10.0.0.5:5432: connection refused")))

	w := s.do(http.MethodGet, "/api/v1/titles/1", "", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}

func TestUsersMeIsTheProfile(t *testing.T) {
	s := setupServer(t, nil)
	s.users.On("GetProfile", mock.Anything, alice).Return(&dto.UserResponse{Username: "alice", Role: "user"}, nil)
	s.users.On("Get", mock.Anything, root, "alice").Return(&dto.UserResponse{Username: "alice"}, nil)
	s.users.On("Get", mock.Anything, alice, "bob").Return(nil, apperr.Forbidden("not allowed to read account"))

	me := s.do(http.MethodGet, "/api/v1/users/me", "alice-token", nil)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "alice", decode(t, me)["username"])

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/users/alice", "root-token", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/users/bob", "alice-token", nil).Code)
	s.users.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, "me")
}

func TestProfilePatchDropsRole(t *testing.T) {
	s := setupServer(t, nil)
	bio := "hi"
	s.users.On("UpdateProfile", mock.Anything, alice, dto.UpdateProfileDTO{Bio: &bio}).
		Return(&dto.UserResponse{Username: "alice", Bio: "hi", Role: "user"}, nil)

	w := s.do(http.MethodPatch, "/api/v1/users/me", "alice-token", `{"bio":"hi","role":"admin"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user", decode(t, w)["role"])
}

func TestCategoryDelete(t *testing.T) {
	s := setupServer(t, nil)
	s.categories.On("Delete", mock.Anything, root, "film").Return(nil)
	s.categories.On("Delete", mock.Anything, root, "nope").Return(apperr.NotFound("category"))

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/v1/categories/film", "root-token", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/api/v1/categories/nope", "root-token", nil).Code)
}

func TestCommentCreate(t *testing.T) {
	s := setupServer(t, nil)
	s.comments.On("Create", mock.Anything, bob, int64(5), int64(3), dto.CreateCommentDTO{Text: "agree"}).
		Return(&dto.CommentResponse{ID: 8, Review: 3, Author: "bob", Text: "agree"}, nil)

	w := s.do(http.MethodPost, "/api/v1/titles/5/reviews/3/comments", "bob-token", dto.CreateCommentDTO{Text: "agree"})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, float64(3), decode(t, w)["review"])
}

func TestSignupAndToken(t *testing.T) {
	s := setupServer(t, nil)
	signup := dto.SignupRequest{Username: "alice", Email: "alice@example.com"}
	s.auth.On("Signup", mock.Anything, signup).Return(&dto.SignupResponse{Username: "alice", Email: "alice@example.com"}, nil)
	s.auth.On("Token", mock.Anything, dto.TokenRequest{Username: "alice", ConfirmationCode: "WRONG"}).
		Return(nil, fmt.Errorf("%w: invalid username, email or confirmation code", apperr.ErrUnauthenticated))
	s.auth.On("Token", mock.Anything, dto.TokenRequest{Username: "alice", ConfirmationCode: "GOOD"}).
		Return(&dto.TokenResponse{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", ExpiresIn: 3600}, nil)

	w := s.do(http.MethodPost, "/api/v1/auth/signup", "", signup)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode(t, w)["username"])

	w = s.do(http.MethodPost, "/api/v1/auth/token", "", dto.TokenRequest{Username: "alice", ConfirmationCode: "WRONG"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/token", "", dto.TokenRequest{Username: "alice", ConfirmationCode: "GOOD"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Bearer", decode(t, w)["token_type"])
}

func TestSignupIgnoresStaleBearer(t *testing.T) {
	s := setupServer(t, nil)
	signup := dto.SignupRequest{Username: "carol", Email: "carol@example.com"}
	s.auth.On("Signup", mock.Anything, signup).Return(&dto.SignupResponse{Username: "carol"}, nil)

	w := s.do(http.MethodPost, "/api/v1/auth/signup", "stale-token", signup)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthIsRateLimited(t *testing.T) {
	s := setupServer(t, middleware.NewLocalLimiter(1, time.Minute))
	s.auth.On("Refresh", mock.Anything, "r1").Return(nil, fmt.Errorf("%w: invalid refresh token", apperr.ErrUnauthenticated))

	first := s.do(http.MethodPost, "/api/v1/auth/token/refresh", "", dto.RefreshTokenRequest{RefreshToken: "r1"})
	second := s.do(http.MethodPost, "/api/v1/auth/token/refresh", "", dto.RefreshTokenRequest{RefreshToken: "r1"})

	assert.Equal(t, http.StatusUnauthorized, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))

	// resource routes are not throttled
	s.titles.On("Get", mock.Anything, int64(1)).Return(&dto.TitleResponse{ID: 1}, nil)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/titles/1", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/titles/1", "", nil).Code)
}

func TestAuthLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	s := setupServer(t, middleware.NewLocalLimiter(1, time.Minute))
	s.auth.On("Refresh", mock.Anything, "r1").Return(nil, fmt.Errorf("%w: invalid refresh token", apperr.ErrUnauthenticated))

	body := dto.RefreshTokenRequest{RefreshToken: "r1"}
	for i := 0; i < 5; i++ {
		w := s.doWithHeaders(http.MethodPost, "/api/v1/auth/token/refresh",
			map[string]string{"X-Forwarded-For": fmt.Sprintf("198.51.100.%d", i+1)}, body)
		if i == 0 {
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			continue
		}
		assert.Equal(t, http.StatusTooManyRequests, w.Code, "request %d", i+1)
	}
}

func TestAuthLimitUsesForwardedForFromTrustedProxy(t *testing.T) {
	s := setupServer(t, middleware.NewLocalLimiter(1, time.Minute), "192.0.2.1")
	s.auth.On("Refresh", mock.Anything, "r1").Return(nil, fmt.Errorf("%w: invalid refresh token", apperr.ErrUnauthenticated))

	from := func(ip string) int {
		return s.doWithHeaders(http.MethodPost, "/api/v1/auth/token/refresh",
			map[string]string{"X-Forwarded-For": ip}, dto.RefreshTokenRequest{RefreshToken: "r1"}).Code
	}

	assert.Equal(t, http.StatusUnauthorized, from("198.51.100.1"))
	assert.Equal(t, http.StatusUnauthorized, from("198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, from("198.51.100.1"))
}
