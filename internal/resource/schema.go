package resource

import "fmt"

// ShapeKind is the structural type an attribute is expected to have
type ShapeKind int

const (
	ShapeScalar ShapeKind = iota
	ShapeList             // list of scalars, a lone scalar is not accepted
	ShapeBlock            // mapping or list of mappings
	ShapeMap              // free-form string mapping such as tags
)

func (s ShapeKind) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeList:
		return "list"
	case ShapeBlock:
		return "block"
	case ShapeMap:
		return "map"
	default:
		return "unknown"
	}
}

// Shape describes an expected attribute and, for blocks, its children
type Shape struct {
	Kind     ShapeKind
	Children map[string]Shape
}

func scalar() Shape { return Shape{Kind: ShapeScalar} }
func list() Shape   { return Shape{Kind: ShapeList} }

func block(children map[string]Shape) Shape {
	return Shape{Kind: ShapeBlock, Children: children}
}

var ruleShape = block(map[string]Shape{
	"from_port":        scalar(),
	"to_port":          scalar(),
	"protocol":         scalar(),
	"cidr_blocks":      list(),
	"ipv6_cidr_blocks": list(),
})

// schemas holds the known attribute shapes per kind. Attributes missing from a
// schema are accepted in any shape.
var schemas = map[Kind]map[string]Shape{
	KindStorageBucket: {
		"bucket":     scalar(),
		"acl":        scalar(),
		"versioning": block(map[string]Shape{"enabled": scalar(), "mfa_delete": scalar()}),
		"logging":    block(map[string]Shape{"target_bucket": scalar(), "target_prefix": scalar()}),
		"server_side_encryption_configuration": block(map[string]Shape{
			"rule": block(map[string]Shape{
				"apply_server_side_encryption_by_default": block(map[string]Shape{
					"sse_algorithm":     scalar(),
					"kms_master_key_id": scalar(),
				}),
			}),
		}),
		"lifecycle_rule": block(nil),
		"cors_rule": block(map[string]Shape{
			"allowed_origins": list(),
			"allowed_methods": list(),
		}),
		"website": block(nil),
	},
	KindManagedDatabase: {
		"identifier":                      scalar(),
		"publicly_accessible":             scalar(),
		"storage_encrypted":               scalar(),
		"backup_retention_period":         scalar(),
		"enabled_cloudwatch_logs_exports": list(),
		"password":                        scalar(),
		"master_password":                 scalar(),
	},
	KindComputeInstance: {
		"associate_public_ip_address": scalar(),
		"user_data":                   scalar(),
		"root_block_device":           block(map[string]Shape{"encrypted": scalar()}),
		"ebs_block_device":            block(map[string]Shape{"encrypted": scalar()}),
	},
	KindBlockVolume: {
		"encrypted":  scalar(),
		"kms_key_id": scalar(),
	},
	KindNetworkRuleSet: {
		"ingress":          ruleShape,
		"egress":           ruleShape,
		"cidr_blocks":      list(),
		"ipv6_cidr_blocks": list(),
		"source_ranges":    list(),
	},
	KindIdentityPolicy: {
		"statement": block(map[string]Shape{
			"actions":   list(),
			"resources": list(),
		}),
	},
}

// validate walks attrs against the schema for kind, removing every value that
// has the wrong shape and reporting it. attrs must already be a private copy.
func validate(kind Kind, attrs map[string]interface{}) []Diagnostic {
	schema, ok := schemas[kind]
	if !ok {
		return nil
	}
	return validateLevel("", schema, attrs)
}

func validateLevel(prefix string, schema map[string]Shape, attrs map[string]interface{}) []Diagnostic {
	var diags []Diagnostic
	for _, name := range sortedKeys(schema) {
		shape := schema[name]
		raw, ok := attrs[name]
		if !ok || raw == nil {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}

		if !matches(shape.Kind, raw) {
			delete(attrs, name)
			diags = append(diags, Diagnostic{
				Code:    MalformedAttribute,
				Path:    path,
				Message: fmt.Sprintf("expected %s, got %s", shape.Kind, describe(raw)),
			})
			continue
		}

		if shape.Kind == ShapeBlock && len(shape.Children) > 0 {
			for i, child := range blockMaps(raw) {
				childPath := fmt.Sprintf("%s[%d]", path, i)
				diags = append(diags, validateLevel(childPath, shape.Children, child)...)
			}
		}
	}
	return diags
}

func matches(kind ShapeKind, raw interface{}) bool {
	switch kind {
	case ShapeScalar:
		_, ok := scalarString(raw)
		return ok
	case ShapeList:
		items, ok := raw.([]interface{})
		if !ok {
			return false
		}
		for _, item := range items {
			if _, ok := scalarString(item); !ok {
				return false
			}
		}
		return true
	case ShapeBlock:
		switch v := raw.(type) {
		case map[string]interface{}:
			return true
		case []interface{}:
			for _, item := range v {
				if _, ok := item.(map[string]interface{}); !ok {
					return false
				}
			}
			return true
		}
		return false
	case ShapeMap:
		_, ok := raw.(map[string]interface{})
		return ok
	}
	return true
}

func blockMaps(raw interface{}) []map[string]interface{} {
	switch v := raw.(type) {
	case map[string]interface{}:
		return []map[string]interface{}{v}
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func describe(raw interface{}) string {
	switch raw.(type) {
	case map[string]interface{}:
		return "block"
	case []interface{}:
		return "list"
	}
	if _, ok := scalarString(raw); ok {
		return "scalar"
	}
	return fmt.Sprintf("%T", raw)
}
