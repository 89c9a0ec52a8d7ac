package payment

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"courtbook/internal/models"

	"github.com/google/uuid"
)

// SandboxGateway stands in for a hosted checkout. In sandbox mode its
// preferences are flagged sandbox and admission confirms them without a
// payment signal; otherwise the reservation waits for a signal.
type SandboxGateway struct {
	checkoutURL string
	sandbox     bool
	newID       func() string
}

func NewSandboxGateway(checkoutURL string, sandbox bool) *SandboxGateway {
	return &SandboxGateway{
		checkoutURL: strings.TrimRight(checkoutURL, "/"),
		sandbox:     sandbox,
		newID:       uuid.NewString,
	}
}

func (g *SandboxGateway) CreatePreference(_ context.Context, res *models.Reservation, _ *models.Owner) (*models.Preference, error) {
	if res == nil || res.ID == "" {
		return nil, errors.New("reservation is required")
	}
	if res.TotalPrice <= 0 {
		return nil, errors.New("reservation has no amount to charge")
	}

	q := url.Values{}
	q.Set("reservation_id", res.ID)

	if g.sandbox {
		q.Set("mock", "true")
		return &models.Preference{
			ID:          "sandbox_" + g.newID(),
			RedirectURL: g.checkoutURL + "/booking/success?" + q.Encode(),
			Sandbox:     true,
		}, nil
	}

	id := "pref_" + g.newID()
	q.Set("preference_id", id)
	return &models.Preference{
		ID:          id,
		RedirectURL: g.checkoutURL + "/checkout?" + q.Encode(),
	}, nil
}
