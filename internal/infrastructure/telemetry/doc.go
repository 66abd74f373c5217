// Package telemetry records bridge measurements in InfluxDB.
//
// It wraps influxdb-client-go's non-blocking write API. Command round
// trips, availability transitions, and discovery passes land as batched
// points; asynchronous write failures surface through the OnError
// callback rather than on the write path, so recording never blocks the
// command pipeline.
package telemetry
