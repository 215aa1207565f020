// internal/app/features/dashboard/common.go
package dashboard

import (
	"context"
	"errors"

	"github.com/dalemusser/teamreg/internal/app/service/report"
	"github.com/dalemusser/teamreg/internal/app/system/apperr"
	"github.com/dalemusser/teamreg/internal/domain/models"
)

// baseData is common to every dashboard.
type baseData struct {
	Role string       `json:"role"`
	User *models.User `json:"user"`
}

// teamView resolves the roster and payment of t.
func (h *Handler) teamView(ctx context.Context, t *models.Team) (*report.TeamView, error) {
	leader, members, err := h.Services.Roster.Roster(ctx, t)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []models.User{}
	}
	v := &report.TeamView{Team: *t, Leader: leader, Members: members}
	if t.PaymentID != nil {
		p, err := h.Services.Ledger.Get(ctx, *t.PaymentID)
		switch {
		case errors.Is(err, apperr.ErrPaymentNotFound):
		case err != nil:
			return nil, err
		default:
			v.Payment = p
		}
	}
	return v, nil
}
