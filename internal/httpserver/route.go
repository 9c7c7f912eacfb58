package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	authmw "github.com/soggo/bounty/internal/middleware/auth"
	"github.com/soggo/bounty/internal/signer"
)

type Deps struct {
	Catalog *CatalogHTTP
	Auth    *AuthHTTP
	Account *AccountHTTP
	Signer  *signer.Handler
	AuthMW  *authmw.AuthMiddleware
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", d.Auth.Register)
	authGroup.POST("/login", d.Auth.Login)
	authGroup.POST("/refresh", d.Auth.Refresh)
	authGroup.POST("/logout", d.Auth.Logout)
	authGroup.GET("/me", d.Auth.Me, d.AuthMW.RequireUser)
	authGroup.GET("/role", d.Auth.Role, d.AuthMW.RequireUser)

	products := api.Group("/products")
	products.GET("", d.Catalog.GetProducts)
	products.GET("/search", d.Catalog.SearchProducts)
	products.GET("/:slug", d.Catalog.GetProductBySlug)

	categories := api.Group("/categories")
	categories.GET("", d.Catalog.GetCategories)

	admin := api.Group("/admin", d.AuthMW.RequireAdmin)
	admin.GET("/stats", d.Catalog.Stats)
	admin.GET("/products/recent", d.Catalog.RecentProducts)
	admin.POST("/products", d.Catalog.CreateProduct)
	admin.PATCH("/products/:id", d.Catalog.PatchProduct)
	admin.DELETE("/products/:id", d.Catalog.DeleteProduct)
	admin.POST("/categories", d.Catalog.CreateCategory)
	admin.DELETE("/categories/:id", d.Catalog.DeleteCategory)

	account := api.Group("/account", d.AuthMW.RequireUser)
	account.GET("/profile", d.Account.GetProfile)
	account.PATCH("/profile", d.Account.UpdateProfile)
	account.GET("/addresses", d.Account.ListAddresses)
	account.POST("/addresses", d.Account.CreateAddress)
	account.PATCH("/addresses/:id", d.Account.UpdateAddress)
	account.GET("/wishlist", d.Account.ListWishlist)
	account.POST("/wishlist", d.Account.AddWishlistItem)
	account.DELETE("/wishlist/:id", d.Account.RemoveWishlistItem)

	if d.Signer != nil {
		api.POST("/upload/sign", d.Signer.Handle, d.AuthMW.RequireAdmin)
		api.OPTIONS("/upload/sign", d.Signer.Handle)
	}
}
