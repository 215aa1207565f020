// internal/app/system/csvutil/csvutil.go
package csvutil

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// bom makes Excel open the file as UTF-8.
var bom = []byte{0xEF, 0xBB, 0xBF}

// Table is a header row plus data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Add appends one data row.
func (t *Table) Add(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Len is the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Write encodes t with a leading BOM and CRLF line endings.
func Write(w io.Writer, t Table) error {
	if _, err := w.Write(bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// Attach sets the download headers for filename.
func Attach(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, url.PathEscape(filename)))
}
