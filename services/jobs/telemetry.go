package jobs

import "causelist-backend/lib/telemetry"

var tracer = telemetry.Tracer("causelist.services.jobs")
var meter = telemetry.Meter("causelist.services.jobs")

var finishedCounter, _ = meter.Int64Counter("jobs.finished")
