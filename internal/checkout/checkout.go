// Package checkout drives the two-step checkout wizard: contact details,
// then a Nigerian shipping address. The draft is persisted after every
// field change so an interrupted checkout resumes where it left off.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soggo/bounty/internal/kvstore"
	"github.com/soggo/bounty/internal/models"
	"github.com/soggo/bounty/internal/repo"
)

const StorageKey = "bounty:checkout"

const (
	StepContact  = "contact"
	StepShipping = "shipping"
	StepPayment  = "payment"
)

var emailPattern = regexp.MustCompile(`^.+@.+\..+$`)

// NigerianStates is the fixed list offered by the state selector.
var NigerianStates = []string{
	"Abia", "Adamawa", "Akwa Ibom", "Anambra", "Bauchi", "Bayelsa", "Benue",
	"Borno", "Cross River", "Delta", "Ebonyi", "Edo", "Ekiti", "Enugu",
	"FCT - Abuja", "Gombe", "Imo", "Jigawa", "Kaduna", "Kano", "Katsina",
	"Kebbi", "Kogi", "Kwara", "Lagos", "Nasarawa", "Niger", "Ogun", "Ondo",
	"Osun", "Oyo", "Plateau", "Rivers", "Sokoto", "Taraba", "Yobe", "Zamfara",
}

func IsNigerianState(state string) bool {
	for _, s := range NigerianStates {
		if s == state {
			return true
		}
	}
	return false
}

type Shipping struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Phone       string `json:"phone"`
	Line1       string `json:"line1"`
	Line2       string `json:"line2"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
}

type Draft struct {
	Step     string   `json:"step"`
	Email    string   `json:"email"`
	Shipping Shipping `json:"shipping"`
}

var ErrInvalidStep = errors.New("invalid checkout step")

// ValidContact reports the field errors of the contact step. An empty map
// means the step may advance.
func (d *Draft) ValidContact() map[string]string {
	problems := map[string]string{}
	if !emailPattern.MatchString(strings.TrimSpace(d.Email)) {
		problems["email"] = "enter a valid email address"
	}
	return problems
}

// ValidShipping reports the field errors of the shipping step.
func (d *Draft) ValidShipping() map[string]string {
	problems := map[string]string{}
	s := d.Shipping
	if len(strings.TrimSpace(s.FirstName)) <= 1 {
		problems["first_name"] = "first name is too short"
	}
	if len(strings.TrimSpace(s.LastName)) <= 1 {
		problems["last_name"] = "last name is too short"
	}
	if len(strings.TrimSpace(s.Phone)) < 7 {
		problems["phone"] = "enter a valid phone number"
	}
	if len(strings.TrimSpace(s.Line1)) <= 3 {
		problems["line1"] = "address is too short"
	}
	if len(strings.TrimSpace(s.City)) <= 1 {
		problems["city"] = "city is required"
	}
	if !IsNigerianState(s.State) {
		problems["state"] = "select a state"
	}
	if s.CountryCode != "" && s.CountryCode != "NG" {
		problems["country_code"] = "shipping is only available within Nigeria"
	}
	return problems
}

// Wizard owns one draft per process, persisting it through the key-value
// store on every mutation.
type Wizard struct {
	mu    sync.Mutex
	kv    kvstore.Store
	draft Draft
}

func NewWizard(kv kvstore.Store) *Wizard {
	w := &Wizard{kv: kv, draft: Draft{Step: StepContact, Shipping: Shipping{CountryCode: "NG"}}}
	if kv != nil {
		if raw, ok := kv.Get(StorageKey); ok {
			var stored Draft
			if err := json.Unmarshal([]byte(raw), &stored); err == nil && stored.Step != "" {
				w.draft = stored
			}
		}
	}
	return w
}

func (w *Wizard) Draft() Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

func (w *Wizard) SetEmail(email string) {
	w.mu.Lock()
	w.draft.Email = email
	w.persist()
	w.mu.Unlock()
}

func (w *Wizard) SetShipping(s Shipping) {
	w.mu.Lock()
	if s.CountryCode == "" {
		s.CountryCode = "NG"
	}
	w.draft.Shipping = s
	w.persist()
	w.mu.Unlock()
}

// Advance validates the current step and, when clean, moves to the next.
// The returned map carries field errors when validation fails.
func (w *Wizard) Advance() (string, map[string]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.draft.Step {
	case StepContact:
		if problems := w.draft.ValidContact(); len(problems) > 0 {
			return w.draft.Step, problems, nil
		}
		w.draft.Step = StepShipping
	case StepShipping:
		if problems := w.draft.ValidShipping(); len(problems) > 0 {
			return w.draft.Step, problems, nil
		}
		w.draft.Step = StepPayment
	case StepPayment:
		// Terminal step; payment capture is out of scope.
	default:
		return w.draft.Step, nil, ErrInvalidStep
	}
	w.persist()
	return w.draft.Step, nil, nil
}

func (w *Wizard) Back() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.draft.Step {
	case StepShipping:
		w.draft.Step = StepContact
	case StepPayment:
		w.draft.Step = StepShipping
	}
	w.persist()
	return w.draft.Step
}

func (w *Wizard) Reset() {
	w.mu.Lock()
	w.draft = Draft{Step: StepContact, Shipping: Shipping{CountryCode: "NG"}}
	if w.kv != nil {
		w.kv.Delete(StorageKey)
	}
	w.mu.Unlock()
}

func (w *Wizard) persist() {
	if w.kv == nil {
		return
	}
	raw, err := json.Marshal(w.draft)
	if err != nil {
		return
	}
	_ = w.kv.Set(StorageKey, string(raw))
}

// Prefill fetches the signed-in user's email and default shipping address
// concurrently and fills any fields the draft has not set yet. A missing
// profile or address is just absence; any other lookup failure is returned
// after the fields that did resolve have been applied.
func (w *Wizard) Prefill(ctx context.Context, r *repo.GormRepo, userID uuid.UUID, email string) error {
	var (
		wg      sync.WaitGroup
		addr    *models.Address
		profile *models.Profile
		addrErr error
		profErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		addr, addrErr = r.DefaultShippingAddress(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		profile, profErr = r.GetProfile(ctx, userID)
	}()
	wg.Wait()

	if errors.Is(addrErr, gorm.ErrRecordNotFound) {
		addrErr = nil
	}
	if errors.Is(profErr, gorm.ErrRecordNotFound) {
		profErr = nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.draft.Email == "" && email != "" {
		w.draft.Email = email
	}
	if profile != nil {
		if w.draft.Shipping.FirstName == "" && profile.FirstName != nil {
			w.draft.Shipping.FirstName = *profile.FirstName
		}
		if w.draft.Shipping.LastName == "" && profile.LastName != nil {
			w.draft.Shipping.LastName = *profile.LastName
		}
	}
	if addr != nil {
		if w.draft.Shipping.Phone == "" {
			w.draft.Shipping.Phone = addr.Phone
		}
		if w.draft.Shipping.Line1 == "" {
			w.draft.Shipping.Line1 = addr.Line1
		}
		if w.draft.Shipping.Line2 == "" && addr.Line2 != nil {
			w.draft.Shipping.Line2 = *addr.Line2
		}
		if w.draft.Shipping.City == "" {
			w.draft.Shipping.City = addr.City
		}
		if w.draft.Shipping.State == "" {
			w.draft.Shipping.State = addr.State
		}
		if w.draft.Shipping.PostalCode == "" && addr.PostalCode != nil {
			w.draft.Shipping.PostalCode = *addr.PostalCode
		}
	}
	w.persist()

	if profErr != nil {
		return profErr
	}
	return addrErr
}
