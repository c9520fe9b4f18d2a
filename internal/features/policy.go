package features

import (
	"encoding/json"
	"strings"

	"github.com/aws/aws-sdk-go/aws/arn"

	"iacsift/internal/resource"
)

// statement is one policy statement normalized from JSON documents and
// aws_iam_policy_document blocks
type statement struct {
	effect     string
	actions    []string
	resources  []string
	principals []string
}

func (s statement) allows() bool {
	return s.effect == "" || strings.EqualFold(s.effect, "Allow")
}

// gcpAdminRoles are primitive project roles that grant full control
var gcpAdminRoles = map[string]bool{
	"roles/owner":  true,
	"roles/editor": true,
}

// policyStatements returns every permission statement in d. Trust policies
// (assume_role_policy) are excluded; they are returned by trustStatements.
func policyStatements(d *resource.Declaration) []statement {
	var out []statement
	out = append(out, documentStatements(d.Get("policy").Value)...)
	for _, blk := range d.Blocks("inline_policy") {
		out = append(out, documentStatements(blk.Get("policy").Value)...)
	}
	for _, blk := range d.Blocks("statement") {
		out = append(out, blockStatement(blk))
	}
	return out
}

func trustStatements(d *resource.Declaration) []statement {
	return documentStatements(d.Get("assume_role_policy").Value)
}

func blockStatement(blk resource.Block) statement {
	effect, _ := blk.Get("effect").String()
	st := statement{
		effect:    effect,
		actions:   blk.Get("actions").Strings(),
		resources: blk.Get("resources").Strings(),
	}
	for _, p := range blk.Blocks("principals") {
		st.principals = append(st.principals, p.Get("identifiers").Strings()...)
	}
	return st
}

// documentStatements parses a policy given either as a JSON string or as an
// already decoded mapping. Anything unparseable yields no statements.
func documentStatements(raw interface{}) []statement {
	var doc map[string]interface{}
	switch v := raw.(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &doc); err != nil {
			return nil
		}
	case map[string]interface{}:
		doc = v
	case []interface{}:
		if len(v) > 0 {
			doc, _ = v[0].(map[string]interface{})
		}
	}
	if doc == nil {
		return nil
	}

	var entries []interface{}
	switch s := doc["Statement"].(type) {
	case []interface{}:
		entries = s
	case map[string]interface{}:
		entries = []interface{}{s}
	}

	out := make([]statement, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		effect, _ := m["Effect"].(string)
		out = append(out, statement{
			effect:     effect,
			actions:    flattenStrings(m["Action"]),
			resources:  flattenStrings(m["Resource"]),
			principals: flattenStrings(m["Principal"]),
		})
	}
	return out
}

// flattenStrings collects every string in a string, list or mapping value.
// Principals such as {"AWS": ["*"]} flatten to their identifiers.
func flattenStrings(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		var out []string
		for _, item := range t {
			out = append(out, flattenStrings(item)...)
		}
		return out
	case map[string]interface{}:
		var out []string
		for _, item := range t {
			out = append(out, flattenStrings(item)...)
		}
		return out
	}
	return nil
}

func contains(values []string, want ...string) bool {
	for _, v := range values {
		for _, w := range want {
			if strings.TrimSpace(v) == w {
				return true
			}
		}
	}
	return false
}

// grantsAdmin reports whether an allow statement applies to action "*" or to
// resource "*"
func grantsAdmin(st statement) bool {
	if !st.allows() {
		return false
	}
	return contains(st.actions, "*", "*:*") || contains(st.resources, "*")
}

// isAdministratorPolicyARN matches the managed AdministratorAccess policy
func isAdministratorPolicyARN(value string) bool {
	parsed, err := arn.Parse(value)
	if err != nil {
		return false
	}
	return parsed.Service == "iam" && parsed.Resource == "policy/AdministratorAccess"
}

func adminWildcard(d *resource.Declaration) bool {
	for _, st := range policyStatements(d) {
		if grantsAdmin(st) {
			return true
		}
	}

	for _, key := range []string{"policy_arn", "managed_policy_arns"} {
		for _, value := range d.Get(key).Strings() {
			if isAdministratorPolicyARN(value) {
				return true
			}
		}
	}

	if role, ok := d.Get("role").String(); ok && gcpAdminRoles[strings.ToLower(role)] {
		return true
	}
	if role, ok := d.Get("role_definition_name").String(); ok && strings.EqualFold(role, "Owner") {
		return true
	}
	return false
}

// publicPrincipal reports whether any allow statement, including trust
// policies, names every principal
func publicPrincipal(d *resource.Declaration) bool {
	for _, st := range append(policyStatements(d), trustStatements(d)...) {
		if st.allows() && contains(st.principals, "*") {
			return true
		}
	}
	return false
}

func init() {
	mustRegister(&extractor{
		name:        AdminWildcardPermission,
		description: "An identity policy allows every action, or any action on every resource",
		def:         Bool(false),
		fn: func(d *resource.Declaration, _ Options) Value {
			return Bool(adminWildcard(d))
		},
	})
}
