package portal

import (
	"causelist-backend/lib/telemetry"
)

var tracer = telemetry.Tracer("causelist.lib.portal")
var meter = telemetry.Meter("causelist.lib.portal")

var lookupCounter, _ = meter.Int64Counter(
	"portal.lookups",
)
var omittedRowCounter, _ = meter.Int64Counter(
	"portal.rows_omitted",
)
