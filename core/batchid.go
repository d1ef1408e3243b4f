package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// batchIDLayout renders month, day, hour, minute and second.
const batchIDLayout = "0102150405"

// NewBatchID returns a compact identifier for an ingestion run started at now.
// The timestamp prefix keeps batches sortable by eye; the random suffix keeps
// two runs started within the same second from sharing an identifier.
func NewBatchID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return now.Format(batchIDLayout) + "-" + suffix
}
