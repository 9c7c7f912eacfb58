// Package signer implements the upload signature endpoint. The client asks
// for a signature over its upload parameters and talks to the CDN directly;
// the API secret never leaves this process.
package signer

import (
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const DefaultFolder = "bounty/products"

var (
	folderAllowed   = regexp.MustCompile(`[^a-zA-Z0-9_/-]`)
	publicIDAllowed = regexp.MustCompile(`[^a-zA-Z0-9_/-]`)
)

type Handler struct {
	CloudName     string
	APIKey        string
	APISecret     string
	AllowedOrigin string

	now func() time.Time
}

func New(cloudName, apiKey, apiSecret, allowedOrigin string) *Handler {
	return &Handler{
		CloudName:     cloudName,
		APIKey:        apiKey,
		APISecret:     apiSecret,
		AllowedOrigin: allowedOrigin,
		now:           time.Now,
	}
}

type request struct {
	Folder   string `json:"folder"`
	PublicID string `json:"public_id"`
	Tags     string `json:"tags"`
	Context  string `json:"context"`
	Eager    string `json:"eager"`
}

type response struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	APIKey    string `json:"api_key"`
	CloudName string `json:"cloud_name"`
	Folder    string `json:"folder"`
	PublicID  string `json:"public_id,omitempty"`
}

// SanitizeFolder strips traversal sequences and characters outside the CDN
// folder alphabet, falling back to the default product folder.
func SanitizeFolder(folder string) string {
	folder = strings.ReplaceAll(folder, "..", "")
	folder = strings.TrimLeft(folder, "/")
	folder = folderAllowed.ReplaceAllString(folder, "")
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return DefaultFolder
	}
	return folder
}

// SanitizePublicID shares the folder alphabet, slashes included, but has
// no default to fall back to.
func SanitizePublicID(publicID string) string {
	publicID = strings.ReplaceAll(publicID, "..", "")
	publicID = strings.TrimLeft(publicID, "/")
	publicID = publicIDAllowed.ReplaceAllString(publicID, "")
	return strings.Trim(publicID, "/")
}

// Signature hashes the sorted k=v parameter string with the secret
// appended, matching what the CDN recomputes on its side.
func Signature(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	payload := strings.Join(pairs, "&") + secret

	sum := sha1.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func (h *Handler) setCORS(c echo.Context) {
	origin := h.AllowedOrigin
	if origin == "" {
		origin = "*"
	}
	header := c.Response().Header()
	header.Set(echo.HeaderAccessControlAllowOrigin, origin)
	header.Set(echo.HeaderAccessControlAllowMethods, "POST, OPTIONS")
	header.Set(echo.HeaderAccessControlAllowHeaders, "Content-Type, Authorization")
}

// Handle serves POST and the CORS preflight; anything else is 405.
func (h *Handler) Handle(c echo.Context) error {
	h.setCORS(c)

	switch c.Request().Method {
	case http.MethodOptions:
		return c.NoContent(http.StatusNoContent)
	case http.MethodPost:
	default:
		return c.JSON(http.StatusMethodNotAllowed, map[string]string{"message": "method not allowed"})
	}

	if h.CloudName == "" || h.APIKey == "" || h.APISecret == "" {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "upload signing is not configured"})
	}

	var req request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request body"})
	}

	folder := SanitizeFolder(req.Folder)
	publicID := SanitizePublicID(req.PublicID)
	timestamp := h.now().Unix()

	params := map[string]string{
		"folder":    folder,
		"timestamp": strconv.FormatInt(timestamp, 10),
	}
	if publicID != "" {
		params["public_id"] = publicID
	}
	// Optional upload parameters participate in the signature when present.
	if req.Tags != "" {
		params["tags"] = req.Tags
	}
	if req.Context != "" {
		params["context"] = req.Context
	}
	if req.Eager != "" {
		params["eager"] = req.Eager
	}

	return c.JSON(http.StatusOK, response{
		Signature: Signature(params, h.APISecret),
		Timestamp: timestamp,
		APIKey:    h.APIKey,
		CloudName: h.CloudName,
		Folder:    folder,
		PublicID:  publicID,
	})
}
