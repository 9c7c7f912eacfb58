package httpserver

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/soggo/bounty/internal/logging"
	authmw "github.com/soggo/bounty/internal/middleware/auth"
	"github.com/soggo/bounty/internal/models"
	"github.com/soggo/bounty/internal/repo"
)

type AccountHTTP struct {
	Repo *repo.GormRepo
}

func (h *AccountHTTP) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "account.get_profile")

	userID, _ := authmw.UserID(c)
	profile, err := h.Repo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "profile not found")
		}
		l.Error("get_profile_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load profile")
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *AccountHTTP) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "account.update_profile")

	userID, _ := authmw.UserID(c)

	var req struct {
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	profile, err := h.Repo.GetProfile(ctx, userID)
	if err != nil {
		l.Error("update_profile_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load profile")
	}
	if req.FirstName != nil {
		profile.FirstName = req.FirstName
	}
	if req.LastName != nil {
		profile.LastName = req.LastName
	}
	if err := h.Repo.DB.WithContext(ctx).Save(profile).Error; err != nil {
		l.Error("update_profile_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot update profile")
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *AccountHTTP) ListAddresses(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "account.list_addresses")

	userID, _ := authmw.UserID(c)
	items, err := h.Repo.ListAddresses(ctx, userID)
	if err != nil {
		l.Error("list_addresses_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list addresses")
	}
	return c.JSON(http.StatusOK, map[string]any{"data": items})
}

func (h *AccountHTTP) CreateAddress(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "account.create_address")

	userID, _ := authmw.UserID(c)

	var addr models.Address
	if err := c.Bind(&addr); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	addr.ID = uuid.Nil
	addr.UserID = userID
	if addr.RecipientName == "" || addr.Phone == "" || addr.Line1 == "" || addr.City == "" || addr.State == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "recipient_name, phone, line1, city and state are required")
	}
	if addr.CountryCode == "" {
		addr.CountryCode = "NG"
	}

	if err := h.Repo.CreateAddress(ctx, &addr); err != nil {
		l.Error("create_address_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create address")
	}
	return c.JSON(http.StatusCreated, addr)
}

func (h *AccountHTTP) UpdateAddress(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "account.update_address")

	userID, _ := authmw.UserID(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id not a uuid")
	}

	var addr models.Address
	if err := c.Bind(&addr); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	addr.ID = id
	addr.UserID = userID

	if err := h.Repo.UpdateAddress(ctx, &addr); err != nil {
		l.Error("update_address_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot update address")
	}
	return c.JSON(http.StatusOK, addr)
}

func (h *AccountHTTP) ListWishlist(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "account.list_wishlist")

	userID, _ := authmw.UserID(c)
	entries, err := h.Repo.ListWishlist(ctx, userID)
	if err != nil {
		l.Error("list_wishlist_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list wishlist")
	}
	if entries == nil {
		entries = []repo.WishlistEntry{}
	}
	return c.JSON(http.StatusOK, map[string]any{"data": entries})
}

func (h *AccountHTTP) AddWishlistItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "account.add_wishlist")

	userID, _ := authmw.UserID(c)

	var req struct {
		ProductID string `json:"product_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "product_id not a uuid")
	}

	item := models.WishlistItem{UserID: userID, ProductID: productID}
	if err := h.Repo.AddWishlistItem(ctx, &item); err != nil {
		l.Error("add_wishlist_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot add to wishlist")
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *AccountHTTP) RemoveWishlistItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "account.remove_wishlist")

	userID, _ := authmw.UserID(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id not a uuid")
	}

	if err := h.Repo.RemoveWishlistItem(ctx, userID, id); err != nil {
		l.Error("remove_wishlist_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot remove from wishlist")
	}
	return c.NoContent(http.StatusNoContent)
}
