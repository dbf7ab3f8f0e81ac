// Package export renders scoped data sets for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/vigia-iot/vigia/pkg/model"
)

// alertHeader is the fixed column order of alert exports.
var alertHeader = []string{"id", "device", "message", "priority", "acknowledged", "created_at"}

// WriteAlertsCSV streams alerts as CSV. The caller is responsible for
// passing an already-scoped slice; export applies no filtering of its own.
func WriteAlertsCSV(w io.Writer, alerts []model.AlertWithDevice) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(alertHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, a := range alerts {
		record := []string{
			strconv.FormatInt(a.ID, 10),
			a.DeviceName,
			a.Message,
			string(a.Priority),
			strconv.FormatBool(a.Acknowledged),
			a.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}
