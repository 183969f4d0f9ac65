// Package report renders the admin export of all mappings.
package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/zhejian/shortlink/internal/model"
)

// Filename is the attachment name offered to clients.
const Filename = "urls_report.csv"

// Header lists the exported columns in order.
var Header = []string{"id", "url", "short_code", "visit_count", "user_id", "is_active", "created_at"}

// WriteCSV writes a header row followed by one row per mapping.
func WriteCSV(w io.Writer, mappings []model.URLMapping) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, m := range mappings {
		record := []string{
			m.ID.String(),
			m.Destination,
			m.ShortCode,
			strconv.FormatInt(m.VisitCount, 10),
			strconv.FormatInt(m.OwnerID, 10),
			strconv.FormatBool(m.IsActive),
			m.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
