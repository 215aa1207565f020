// internal/app/features/teams/handler.go
package teams

import (
	"net/http"
	"strings"

	"github.com/dalemusser/teamreg/internal/app/features/shared"
	"github.com/dalemusser/teamreg/internal/app/service/identity"
	"github.com/dalemusser/teamreg/internal/app/service/roster"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/text"
	"go.uber.org/zap"
)

// Handler lets solo participants browse teams they could ask to join.
type Handler struct {
	Roster   *roster.Service
	Identity *identity.Service
	Log      *zap.Logger
}

func NewHandler(r *roster.Service, ids *identity.Service, logger *zap.Logger) *Handler {
	return &Handler{Roster: r, Identity: ids, Log: logger}
}

// Summary is the public view of a team with free slots.
type Summary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	LeaderName string `json:"leader_name"`
	Size       int    `json:"size"`
	MaxSize    int    `json:"max_size"`
	Remaining  int    `json:"remaining"`
}

// ServeOpen handles GET /api/teams[?q=]. Full teams are left out.
func (h *Handler) ServeOpen(w http.ResponseWriter, r *http.Request) {
	list, err := h.Roster.ListOpen(r.Context())
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}

	q := text.Fold(query.Search(r, "q"))
	out := make([]Summary, 0, len(list))
	for i := range list {
		t := &list[i]
		if q != "" && !containsFold(t, q) {
			continue
		}
		out = append(out, h.summarize(r, t))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"teams": out})
}

func (h *Handler) summarize(r *http.Request, t *models.Team) Summary {
	s := Summary{
		ID:        t.ID.Hex(),
		Name:      t.Name,
		Size:      t.Size(),
		MaxSize:   t.MaxSize,
		Remaining: t.Remaining(),
	}
	if leader, err := h.Identity.Get(r.Context(), t.LeaderID); err == nil {
		s.LeaderName = leader.Name
	} else {
		h.Log.Warn("team leader missing", zap.String("team_id", t.ID.Hex()), zap.Error(err))
	}
	return s
}

func containsFold(t *models.Team, folded string) bool {
	name := t.NameCI
	if name == "" {
		name = text.Fold(t.Name)
	}
	return strings.Contains(name, folded)
}
