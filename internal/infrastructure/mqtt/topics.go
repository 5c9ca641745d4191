package mqtt

import "fmt"

// Topic prefixes for Gray Logic Persist.
const (
	// TopicPrefix is the root of every topic this service publishes.
	TopicPrefix = "graypersist"

	// TopicPrefixSystem is the base for service status topics.
	TopicPrefixSystem = TopicPrefix + "/system"

	// TopicPrefixSchema is the base for schema report topics.
	TopicPrefixSchema = TopicPrefix + "/schema"
)

// Topics provides builders for Gray Logic Persist MQTT topics.
//
//	topic := mqtt.Topics{}.SchemaStatus("audit_logs")
//	// Returns: "graypersist/schema/audit_logs/status"
type Topics struct{}

// SystemStatus returns the service status topic.
//
// Example: graypersist/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// SystemStats returns the topic for periodic runner statistics.
//
// Example: graypersist/system/stats
func (Topics) SystemStats() string {
	return fmt.Sprintf("%s/stats", TopicPrefixSystem)
}

// SchemaStatus returns the topic carrying the schema report for table.
// An empty table name selects the registry topic.
//
// Example: graypersist/schema/audit_logs/status
func (t Topics) SchemaStatus(table string) string {
	if table == "" {
		return t.SchemaRegistry()
	}
	return fmt.Sprintf("%s/%s/status", TopicPrefixSchema, table)
}

// SchemaRegistry returns the topic for failures that concern the registry
// as a whole rather than one table.
//
// Example: graypersist/schema/registry
func (Topics) SchemaRegistry() string {
	return fmt.Sprintf("%s/registry", TopicPrefixSchema)
}

// AllSchemaStatus returns a pattern matching every per-table schema report.
//
// Pattern: graypersist/schema/+/status
func (Topics) AllSchemaStatus() string {
	return fmt.Sprintf("%s/+/status", TopicPrefixSchema)
}
