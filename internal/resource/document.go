package resource

import (
	"errors"
	"fmt"
)

// ErrUnrecognizedDocument is returned when a parsed tree matches none of the
// supported document layouts
var ErrUnrecognizedDocument = errors.New("document contains no recognizable resource declarations")

// dataSources lists the data source types that are scanned like resources
var dataSources = map[string]bool{
	"aws_iam_policy_document": true,
}

// FromDocument turns a generic parsed tree into declarations. Supported
// layouts are Terraform configuration (HCL or JSON), Terraform state, and
// plain records of the form {kind, name, attributes, tags}, either alone or
// as a list under "resources". Declarations are returned in a stable order.
func FromDocument(tree map[string]interface{}, source string) ([]*Declaration, error) {
	doc, _ := normalize(tree).(map[string]interface{})
	if doc == nil {
		return nil, ErrUnrecognizedDocument
	}

	var (
		decls      []*Declaration
		recognized bool
	)

	if raw, ok := doc["resource"]; ok {
		recognized = true
		decls = append(decls, fromConfigBlocks(raw, source, nil)...)
	}
	if raw, ok := doc["data"]; ok {
		recognized = true
		decls = append(decls, fromConfigBlocks(raw, source, dataSources)...)
	}

	if raw, ok := doc["resources"]; ok {
		items, isList := raw.([]interface{})
		if !isList {
			return nil, fmt.Errorf("%w: resources must be a list", ErrUnrecognizedDocument)
		}
		recognized = true
		for i, item := range items {
			entry, isMap := item.(map[string]interface{})
			if !isMap {
				return nil, fmt.Errorf("%w: resources[%d] is not a mapping", ErrUnrecognizedDocument, i)
			}
			if _, isState := entry["instances"]; isState {
				decls = append(decls, fromStateResource(entry, source)...)
				continue
			}
			decls = append(decls, fromRecord(entry, source))
		}
	}

	if isRecord(doc) {
		recognized = true
		decls = append(decls, fromRecord(doc, source))
	}

	if !recognized {
		return nil, ErrUnrecognizedDocument
	}
	return decls, nil
}

// fromConfigBlocks reads resource "type" "name" { ... } blocks. HCL1 decodes
// every level as a list of single-key maps, JSON as plain maps; both are
// handled through blockMaps. A nil allow list accepts every type.
func fromConfigBlocks(raw interface{}, source string, allow map[string]bool) []*Declaration {
	var decls []*Declaration
	for _, byType := range blockMaps(raw) {
		for _, typ := range sortedKeys(byType) {
			if allow != nil && !allow[typ] {
				continue
			}
			for _, byName := range blockMaps(byType[typ]) {
				for _, name := range sortedKeys(byName) {
					decls = append(decls, New(Raw{
						Type:       typ,
						Name:       name,
						Source:     source,
						Attributes: mergeBodies(byName[name]),
					}))
				}
			}
		}
	}
	return decls
}

func fromStateResource(entry map[string]interface{}, source string) []*Declaration {
	if mode, _ := entry["mode"].(string); mode != "" && mode != "managed" {
		return nil
	}
	typ, _ := scalarString(entry["type"])
	name, _ := scalarString(entry["name"])
	instances := blockMaps(entry["instances"])

	decls := make([]*Declaration, 0, len(instances))
	for i, inst := range instances {
		instName := name
		if key, ok := scalarString(inst["index_key"]); ok {
			instName = fmt.Sprintf("%s[%s]", name, key)
		} else if len(instances) > 1 {
			instName = fmt.Sprintf("%s[%d]", name, i)
		}
		attrs, _ := inst["attributes"].(map[string]interface{})
		decls = append(decls, New(Raw{
			Type:       typ,
			Name:       instName,
			Source:     source,
			Attributes: attrs,
		}))
	}
	return decls
}

func isRecord(m map[string]interface{}) bool {
	if _, ok := m["attributes"]; !ok {
		return false
	}
	_, hasKind := m["kind"]
	_, hasType := m["type"]
	return hasKind || hasType
}

func fromRecord(m map[string]interface{}, source string) *Declaration {
	typ, _ := scalarString(m["type"])
	kind, _ := scalarString(m["kind"])
	name, _ := scalarString(m["name"])
	attrs, _ := m["attributes"].(map[string]interface{})

	tags := make(map[string]string)
	for _, tm := range blockMaps(m["tags"]) {
		for k, v := range tm {
			if s, ok := scalarString(v); ok {
				tags[k] = s
			}
		}
	}

	return New(Raw{
		Kind:       kind,
		Type:       typ,
		Name:       name,
		Source:     source,
		Attributes: attrs,
		Tags:       tags,
	})
}

// mergeBodies flattens a body given as a map or a list of maps into one map.
// Later entries win on key collisions.
func mergeBodies(raw interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, m := range blockMaps(raw) {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
