package classify

// Accessors over untyped webhook payloads. Missing or mistyped keys
// read as zero values; classification never faults on payload shape.

func getString(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func getBool(m map[string]interface{}, key string) bool {
	if m == nil {
		return false
	}
	b, _ := m[key].(bool)
	return b
}

func getInt(m map[string]interface{}, key string) int {
	if m == nil {
		return 0
	}
	// JSON numbers decode as float64.
	if f, ok := m[key].(float64); ok {
		return int(f)
	}
	if n, ok := m[key].(int); ok {
		return n
	}
	return 0
}

func getMap(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]interface{})
	return v
}

func getSlice(m map[string]interface{}, key string) []interface{} {
	if m == nil {
		return nil
	}
	v, _ := m[key].([]interface{})
	return v
}

func labelNames(labels []interface{}) []string {
	var names []string
	for _, l := range labels {
		if lm, ok := l.(map[string]interface{}); ok {
			if name := getString(lm, "name"); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}
