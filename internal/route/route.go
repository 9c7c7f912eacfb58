// Package route maps hash fragments to top-level pages and applies the
// access checks for the admin and account areas.
package route

import (
	"net/url"
	"strings"

	"github.com/soggo/bounty/internal/kvstore"
)

const (
	Home            = "#/"
	Admin           = "#/admin"
	SignIn          = "#/signin"
	SignUp          = "#/signup"
	Account         = "#/account"
	Checkout        = "#/checkout"
	CheckoutPayment = "#/checkout/payment"
	ProductPrefix   = "#/p/"
)

const ReturnToKey = "bounty:returnTo"

const RoleAdmin = "admin"

type Page int

const (
	PageStorefront Page = iota
	PageAdmin
	PageSignIn
	PageSignUp
	PageAccount
	PageCheckout
	PageCheckoutPayment
	PageProductDetail
)

// Decision is the outcome of evaluating a route against the auth state.
// Redirect wins over Page; StoreReturnTo records the attempted path so a
// successful sign-in can come back to it.
type Decision struct {
	Page          Page
	Slug          string
	Redirect      string
	StoreReturnTo string
}

// Evaluate is a pure function of the fragment and the auth state, run
// synchronously on every route change.
func Evaluate(fragment string, authenticated bool, role string) Decision {
	if fragment == "" {
		fragment = Home
	}

	switch {
	case strings.HasPrefix(fragment, Admin):
		if !authenticated {
			return Decision{Page: PageSignIn, Redirect: SignIn, StoreReturnTo: fragment}
		}
		if role != RoleAdmin {
			return Decision{Redirect: Home}
		}
		return Decision{Page: PageAdmin}

	case strings.HasPrefix(fragment, SignIn):
		return Decision{Page: PageSignIn}

	case strings.HasPrefix(fragment, SignUp):
		return Decision{Page: PageSignUp}

	case strings.HasPrefix(fragment, Account):
		if !authenticated {
			return Decision{Page: PageSignIn, Redirect: SignIn, StoreReturnTo: fragment}
		}
		return Decision{Page: PageAccount}

	case strings.HasPrefix(fragment, CheckoutPayment):
		return Decision{Page: PageCheckoutPayment}

	case strings.HasPrefix(fragment, Checkout):
		return Decision{Page: PageCheckout}

	case strings.HasPrefix(fragment, ProductPrefix):
		return Decision{Page: PageProductDetail, Slug: ProductSlug(fragment)}

	default:
		return Decision{Page: PageStorefront}
	}
}

// ProductSlug extracts the slug from "#/p/<slug>", dropping any query or
// nested fragment suffix.
func ProductSlug(fragment string) string {
	raw := strings.TrimPrefix(fragment, ProductPrefix)
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// PostLogin computes the redirect after a successful sign-in: admins always
// land on the dashboard, everyone else returns to the stored path unless it
// would bounce straight back into the auth pages. The stored path is consumed.
func PostLogin(store kvstore.Store, role string) string {
	returnTo := Home
	if store != nil {
		if stored, ok := store.Get(ReturnToKey); ok {
			if stored != "" && !strings.HasPrefix(stored, SignIn) && !strings.HasPrefix(stored, SignUp) {
				returnTo = stored
			}
			store.Delete(ReturnToKey)
		}
	}
	if role == RoleAdmin {
		return Admin
	}
	// A stored admin path is useless to a non-admin; don't bounce them into
	// the guard just to be sent home again.
	if strings.HasPrefix(returnTo, Admin) {
		return Home
	}
	return returnTo
}
