// internal/app/features/admin/export.go
package admin

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dalemusser/teamreg/internal/app/features/shared"
	"github.com/dalemusser/teamreg/internal/app/system/apperr"
	"github.com/dalemusser/teamreg/internal/app/system/clock"
	"github.com/dalemusser/teamreg/internal/app/system/csvutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| GET /api/admin/export/{kind}.csv                                            |
| kind is teams, solos or payments. The file is named <kind>-<date>.csv.      |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeExport(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	kind := strings.TrimSuffix(chi.URLParam(r, "file"), ".csv")

	snap, err := h.snapshot(r.Context())
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	tbl, known := snap.Table(kind)
	if !known {
		shared.WriteError(w, h.Log, apperr.New(apperr.KindNotFound, "not_found", "unknown export"))
		return
	}

	filename := fmt.Sprintf("%s-%s.csv", kind, clock.Now(r.Context()).Format("2006-01-02"))
	csvutil.Attach(w, filename)
	if err := csvutil.Write(w, tbl); err != nil {
		// headers are gone; all we can do is log
		h.Log.Error("write export failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	h.AuditLog.ExportDownloaded(r.Context(), r, actorID, kind, tbl.Len())
}
