package mqtt

import "testing"

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"system status", topics.SystemStatus(), "graypersist/system/status"},
		{"system stats", topics.SystemStats(), "graypersist/system/stats"},
		{"schema status", topics.SchemaStatus("audit_logs"), "graypersist/schema/audit_logs/status"},
		{"schema status without table", topics.SchemaStatus(""), "graypersist/schema/registry"},
		{"schema registry", topics.SchemaRegistry(), "graypersist/schema/registry"},
		{"all schema status", topics.AllSchemaStatus(), "graypersist/schema/+/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
