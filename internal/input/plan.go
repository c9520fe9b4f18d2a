package input

import "fmt"

// planResources flattens `terraform show -json` plan output into resource
// records. Managed resources from planned_values and every child module are
// returned; data sources are left out.
func planResources(doc map[string]interface{}) (map[string]interface{}, bool) {
	planned, ok := doc["planned_values"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	root, ok := planned["root_module"].(map[string]interface{})
	if !ok {
		return nil, false
	}

	records := []interface{}{}
	collectModule(root, &records)
	return map[string]interface{}{"resources": records}, true
}

func collectModule(module map[string]interface{}, into *[]interface{}) {
	resources, _ := module["resources"].([]interface{})
	for _, item := range resources {
		r, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if mode, _ := r["mode"].(string); mode != "" && mode != "managed" {
			continue
		}

		values, _ := r["values"].(map[string]interface{})
		if values == nil {
			values = map[string]interface{}{}
		}
		name, _ := r["name"].(string)
		if idx, ok := r["index"]; ok && idx != nil {
			name = fmt.Sprintf("%s[%v]", name, idx)
		}
		if prefix, _ := module["address"].(string); prefix != "" {
			name = prefix + "." + name
		}
		*into = append(*into, map[string]interface{}{
			"type":       r["type"],
			"name":       name,
			"attributes": values,
		})
	}

	children, _ := module["child_modules"].([]interface{})
	for _, child := range children {
		if m, ok := child.(map[string]interface{}); ok {
			collectModule(m, into)
		}
	}
}
