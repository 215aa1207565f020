// internal/app/features/dashboard/organizer.go
package dashboard

import (
	"context"
	"net/http"

	"github.com/dalemusser/teamreg/internal/app/features/shared"
	"github.com/dalemusser/teamreg/internal/app/system/apperr"
	"github.com/dalemusser/teamreg/internal/app/system/timeouts"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Counts is the set of totals on the organizer dashboard.
type Counts struct {
	Teams           int64            `json:"teams"`
	Leaders         int64            `json:"leaders"`
	Members         int64            `json:"members"`
	Solos           int64            `json:"solos"`
	PendingRequests int64            `json:"pending_requests"`
	Payments        map[string]int64 `json:"payments"`
}

type organizerData struct {
	baseData
	RegistrationOpen bool   `json:"registration_open"`
	Counts           Counts `json:"counts"`
}

func (h *Handler) fetchCounts(ctx context.Context) (Counts, error) {
	st := h.Services.Stores
	var out Counts
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		out.Teams, err = st.Teams.Count(ctx)
		return
	})
	g.Go(func() (err error) {
		out.Leaders, err = st.Users.CountByRole(ctx, models.RoleLeader)
		return
	})
	g.Go(func() (err error) {
		out.Members, err = st.Users.CountByRole(ctx, models.RoleMember)
		return
	})
	g.Go(func() (err error) {
		out.Solos, err = st.Users.CountByRole(ctx, models.RoleSolo)
		return
	})
	g.Go(func() (err error) {
		out.PendingRequests, err = st.Requests.CountPending(ctx)
		return
	})
	g.Go(func() (err error) {
		out.Payments, err = st.Payments.CountByStatus(ctx)
		return
	})

	if err := g.Wait(); err != nil {
		return Counts{}, apperr.Internal("dashboard counts", err)
	}
	return out, nil
}

func (h *Handler) ServeOrganizer(w http.ResponseWriter, r *http.Request, u *models.User) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "organizer dashboard")
	defer cancel()

	counts, err := h.fetchCounts(ctx)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	open, err := h.Services.Orchestrator.RegistrationOpen(ctx)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}

	h.Log.Debug("organizer dashboard served", zap.String("user_id", u.ID.Hex()))

	shared.WriteJSON(w, http.StatusOK, organizerData{
		baseData:         baseData{Role: u.Role, User: u},
		RegistrationOpen: open,
		Counts:           counts,
	})
}
