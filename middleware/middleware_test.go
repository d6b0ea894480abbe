package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/audiodrop/musicbox/apperr"
	"github.com/audiodrop/musicbox/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeResolver struct {
	tokens map[string]*models.User
	users  map[uint]*models.User
	calls  int
}

func (f *fakeResolver) Resolve(_ context.Context, token string) (*models.User, error) {
	f.calls++
	if u, ok := f.tokens[token]; ok {
		return u, nil
	}
	return nil, apperr.ErrTokenInvalid
}

func (f *fakeResolver) FindUser(_ context.Context, id uint) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, apperr.ErrNotFound
}

func newResolver() *fakeResolver {
	u := &models.User{ID: 7, Email: "u@example.com"}
	return &fakeResolver{
		tokens: map[string]*models.User{"good": u},
		users:  map[uint]*models.User{7: u},
	}
}

func TestBearerTokenSources(t *testing.T) {
	cases := []struct {
		name   string
		setup  func(r *http.Request)
		target string
		want   string
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, "/", "abc"},
		{"jwt header", func(r *http.Request) { r.Header.Set("Authorization", "JWT abc") }, "/", "abc"},
		{"unknown scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, "/?token=q", ""},
		{"query", func(r *http.Request) {}, "/?token=q", "q"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "c"}) }, "/", "c"},
		{"header wins over cookie", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer h")
			r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "c"})
		}, "/", "h"},
		{"none", func(r *http.Request) {}, "/", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ctx, _ := gin.CreateTestContext(w)
			ctx.Request = httptest.NewRequest(http.MethodGet, tc.target, nil)
			tc.setup(ctx.Request)
			assert.Equal(t, tc.want, BearerToken(ctx))
		})
	}
}

func TestTokenRequired(t *testing.T) {
	res := newResolver()
	reached := 0
	r := gin.New()
	r.GET("/p", TokenRequired(res, zap.NewNop()), func(ctx *gin.Context) {
		reached++
		ctx.String(http.StatusOK, CurrentUser(ctx).Email)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, res.calls)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer bad")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, reached)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u@example.com", w.Body.String())
	assert.Equal(t, 1, reached)
}

func TestSessionRequired(t *testing.T) {
	res := newResolver()
	r := gin.New()
	r.Use(Sessions(cookie.NewStore([]byte("secret"))))
	r.GET("/set/:id", func(ctx *gin.Context) {
		s := sessions.Default(ctx)
		if ctx.Param("id") == "7" {
			s.Set(SessionUserIDKey, uint(7))
		} else {
			s.Set(SessionUserIDKey, uint(99))
		}
		require.NoError(t, s.Save())
	})
	r.GET("/private", SessionRequired(res, zap.NewNop()), func(ctx *gin.Context) {
		assert.True(t, CurrentIdentity(ctx).IsAuthenticated())
		ctx.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=%2Fprivate", w.Header().Get("Location"))

	for id, want := range map[string]int{"7": http.StatusNoContent, "99": http.StatusFound} {
		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/set/"+id, nil))
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		for _, c := range w.Result().Cookies() {
			req.AddCookie(c)
		}
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, id)
	}
}

func TestCurrentIdentityAnonymous(t *testing.T) {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.False(t, CurrentIdentity(ctx).IsAuthenticated())
	assert.Nil(t, CurrentUser(ctx))
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(8))
	r.POST("/", func(ctx *gin.Context) {
		if _, err := io.ReadAll(ctx.Request.Body); err != nil {
			ctx.Status(http.StatusRequestEntityTooLarge)
			return
		}
		ctx.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(make([]byte, 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "41300")

	// no declared length: the cap applies while reading
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(bytes.NewReader(make([]byte, 64))))
	req.ContentLength = -1
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestLiftQueryToken(t *testing.T) {
	r := gin.New()
	r.Use(LiftQueryToken())
	r.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"token": BearerToken(ctx), "query": ctx.Request.URL.RawQuery})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?token=q&x=1", nil))
	assert.JSONEq(t, `{"token":"q","query":"x=1"}`, w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/?token=q", nil)
	req.Header.Set("Authorization", "Bearer h")
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"token":"h","query":""}`, w.Body.String())
}
