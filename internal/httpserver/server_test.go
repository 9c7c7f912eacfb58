package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	authmw "github.com/soggo/bounty/internal/middleware/auth"
	"github.com/soggo/bounty/internal/models"
	"github.com/soggo/bounty/internal/repo"
	"github.com/soggo/bounty/internal/route"
	"github.com/soggo/bounty/internal/service/auth"
	"github.com/soggo/bounty/internal/service/catalog"
	"github.com/soggo/bounty/internal/signer"
)

type testEnv struct {
	Server *httptest.Server
	Repo   *repo.GormRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps every request on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.RefreshToken{},
		&models.Category{},
		&models.Product{},
		&models.Address{},
		&models.WishlistItem{},
	))

	r := &repo.GormRepo{DB: db}
	authSvc := auth.NewService(r, []byte("test-access"), []byte("test-refresh"))

	e := echo.New()
	Register(e, &Deps{
		Catalog: &CatalogHTTP{Svc: &catalog.Service{Repo: r}},
		Auth:    &AuthHTTP{Svc: authSvc, Repo: r},
		Account: &AccountHTTP{Repo: r},
		Signer:  signer.New("cloud", "key", "secret", "*"),
		AuthMW:  authmw.NewAuthMiddleware(authSvc, r),
	})

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return &testEnv{Server: srv, Repo: r}
}

func (env *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, env.Server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

type sessionBody struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (env *testEnv) register(t *testing.T, email string) sessionBody {
	t.Helper()
	resp, raw := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var sess sessionBody
	require.NoError(t, json.Unmarshal(raw, &sess))
	return sess
}

func (env *testEnv) registerAdmin(t *testing.T, email string) sessionBody {
	t.Helper()
	sess := env.register(t, email)
	require.NoError(t, env.Repo.DB.
		Model(&models.Profile{}).
		Where("id = ?", sess.User.ID).
		Update("role", route.RoleAdmin).Error)
	return sess
}

func TestRegisterLoginAndMe(t *testing.T) {
	env := newTestEnv(t)

	sess := env.register(t, "ada@example.com")
	require.NotEmpty(t, sess.AccessToken)
	require.Equal(t, "ada@example.com", sess.User.Email)

	resp, raw := env.do(t, http.MethodGet, "/api/auth/me", sess.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me models.User
	require.NoError(t, json.Unmarshal(raw, &me))
	require.Equal(t, "ada@example.com", me.Email)

	resp, raw = env.do(t, http.MethodGet, "/api/auth/role", sess.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"role":"customer"}`, string(raw))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ada@example.com")

	resp, _ := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshEndpointRotates(t *testing.T) {
	env := newTestEnv(t)
	sess := env.register(t, "ada@example.com")

	resp, raw := env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refresh_token": sess.RefreshToken,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var next sessionBody
	require.NoError(t, json.Unmarshal(raw, &next))
	require.NotEqual(t, sess.RefreshToken, next.RefreshToken)

	resp, _ = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refresh_token": sess.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "rotated token is single use")
}

func TestAdminEndpointsRequireAdminRole(t *testing.T) {
	env := newTestEnv(t)
	customer := env.register(t, "c@example.com")

	resp, _ := env.do(t, http.MethodGet, "/api/admin/stats", customer.AccessToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/admin/stats", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	admin := env.registerAdmin(t, "a@example.com")
	resp, _ = env.do(t, http.MethodGet, "/api/admin/stats", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProductLifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.registerAdmin(t, "a@example.com")

	resp, raw := env.do(t, http.MethodPost, "/api/admin/products", admin.AccessToken, map[string]any{
		"name":           "Blue Ceramic Mug",
		"price":          "29.99",
		"tags":           "kitchen, gift",
		"stock_quantity": 5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var created struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	}
	require.NoError(t, json.Unmarshal(raw, &created))
	require.Equal(t, "blue-ceramic-mug", created.Slug)

	// Public detail by slug.
	resp, raw = env.do(t, http.MethodGet, "/api/products/blue-ceramic-mug", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail struct {
		Product models.Product `json:"product"`
	}
	require.NoError(t, json.Unmarshal(raw, &detail))
	require.Equal(t, int64(2999), detail.Product.Price)

	// Patch the price.
	resp, raw = env.do(t, http.MethodPatch, "/api/admin/products/"+created.ID, admin.AccessToken, map[string]any{
		"price": "31.00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	// Search finds it.
	resp, raw = env.do(t, http.MethodGet, "/api/products/search?q=ceramic+mug", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var results struct {
		Data []models.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &results))
	require.Len(t, results.Data, 1)
	require.Equal(t, int64(3100), results.Data[0].Price)

	// Delete, then the detail 404s.
	resp, _ = env.do(t, http.MethodDelete, "/api/admin/products/"+created.ID, admin.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/products/blue-ceramic-mug", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateProductValidationError(t *testing.T) {
	env := newTestEnv(t)
	admin := env.registerAdmin(t, "a@example.com")

	resp, _ := env.do(t, http.MethodPost, "/api/admin/products", admin.AccessToken, map[string]any{
		"name":  "Mug",
		"price": "not a number",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProductListPaginationMeta(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 25; i++ {
		p := models.Product{Name: fmt.Sprintf("p%d", i), Slug: fmt.Sprintf("p%d", i), Price: 100}
		require.NoError(t, env.Repo.DB.Create(&p).Error)
	}

	resp, raw := env.do(t, http.MethodGet, "/api/products?page=2&size=10", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data []models.Product `json:"data"`
		Meta struct {
			Page       int   `json:"page"`
			Total      int64 `json:"total"`
			TotalPages int64 `json:"total_pages"`
			HasPrev    bool  `json:"has_prev"`
			HasNext    bool  `json:"has_next"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Len(t, body.Data, 10)
	require.EqualValues(t, 25, body.Meta.Total)
	require.EqualValues(t, 3, body.Meta.TotalPages)
	require.True(t, body.Meta.HasPrev)
	require.True(t, body.Meta.HasNext)
}

func TestAccountWishlistFlow(t *testing.T) {
	env := newTestEnv(t)
	sess := env.register(t, "ada@example.com")

	p := models.Product{Name: "Mug", Slug: "mug", Price: 100}
	require.NoError(t, env.Repo.DB.Create(&p).Error)

	resp, raw := env.do(t, http.MethodPost, "/api/account/wishlist", sess.AccessToken, map[string]string{
		"product_id": p.ID.String(),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var item models.WishlistItem
	require.NoError(t, json.Unmarshal(raw, &item))

	resp, raw = env.do(t, http.MethodGet, "/api/account/wishlist", sess.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Data []repo.WishlistEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list.Data, 1)
	require.Equal(t, p.ID, list.Data[0].Product.ID)

	resp, _ = env.do(t, http.MethodDelete, "/api/account/wishlist/"+item.ID.String(), sess.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestUploadSignRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	customer := env.register(t, "c@example.com")

	resp, _ := env.do(t, http.MethodPost, "/api/upload/sign", customer.AccessToken, map[string]string{})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin := env.registerAdmin(t, "a@example.com")
	resp, raw := env.do(t, http.MethodPost, "/api/upload/sign", admin.AccessToken, map[string]string{
		"folder": "bounty/products",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var sig struct {
		Signature string `json:"signature"`
		CloudName string `json:"cloud_name"`
	}
	require.NoError(t, json.Unmarshal(raw, &sig))
	require.NotEmpty(t, sig.Signature)
	require.Equal(t, "cloud", sig.CloudName)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
