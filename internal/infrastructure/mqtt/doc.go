// Package mqtt provides MQTT client connectivity for Gray Logic Persist.
//
// The service only publishes. It announces its own status (online, graceful
// offline, and an unexpected-disconnect Last Will) and retains one schema
// report per table so that operators see version problems found at
// startup without reading logs.
//
// # Topics
//
//	graypersist/system/status          service status (retained, LWT)
//	graypersist/system/stats           runner and pool counters
//	graypersist/schema/{table}/status  last schema problem for a table (retained)
//	graypersist/schema/registry        registry-level failures (retained)
//
// # Security Considerations
//
//   - TLS should be enabled for non-local brokers (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.PublishRetained(mqtt.Topics{}.SchemaStatus("audit_logs"), payload)
package mqtt
