// Package influxdb records transaction runner telemetry in InfluxDB.
//
// A Sink is a persistence.Observer: every finished run becomes one point in
// the "transactions" measurement, tagged by unit-of-work name and outcome.
// Periodic snapshots of runner, pool and sink counters go to "runner_stats".
//
//	sink, err := influxdb.Open(cfg.InfluxDB, log.Component("influxdb"))
//	if err != nil {
//	    return err
//	}
//	defer sink.Close()
//
//	runner := persistence.NewRunner(pool, persistence.Options{Observer: sink})
//
// Writes are batched by influxdb-client-go and never block the runner.
// Asynchronous write failures are logged and counted in Stats; points
// recorded after Close are counted as dropped.
package influxdb
