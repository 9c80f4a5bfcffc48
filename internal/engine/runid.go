package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Timezone is the engine's fixed zone. All context date variables, run
// ids and log partitions are computed in it regardless of host locale.
var Timezone = time.FixedZone("JST", 9*60*60)

// NewRunID builds a run id of the form YYYYMMDD_HHMMSS_xxxx where xxxx
// is a random hex suffix. The timestamp prefix keeps ids sortable by
// start time; the suffix disambiguates runs starting in the same second.
func NewRunID(t time.Time) string {
	suffix := uuid.NewString()[:4]
	return fmt.Sprintf("%s_%s", t.In(Timezone).Format("20060102_150405"), suffix)
}
