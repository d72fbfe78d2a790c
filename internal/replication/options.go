package replication

import (
	"sort"
	"strings"
)

// defaultPluginOptions are the wal2json options every poll passes unless
// overridden by ReplicationConfig.PluginOptions.
var defaultPluginOptions = map[string]string{
	"include-lsn":         "true",
	"include-timestamp":   "true",
	"include-schemas":     "true",
	"include-types":       "true",
	"include-transaction": "false",
}

// buildPluginOptions flattens the merged option map into the alternating
// key/value list pg_logical_slot_get_changes expects. Keys are sorted so
// the generated statement is stable.
func buildPluginOptions(overrides map[string]string, tables []string) []string {
	merged := make(map[string]string, len(defaultPluginOptions)+len(overrides)+1)
	for k, v := range defaultPluginOptions {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	if len(tables) > 0 {
		merged["add-tables"] = strings.Join(tables, ",")
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		result = append(result, k, merged[k])
	}
	return result
}
