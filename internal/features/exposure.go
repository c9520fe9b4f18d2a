package features

import (
	"strings"

	"iacsift/internal/resource"
)

// publicGrantees are IAM members that mean "everyone"
var publicGrantees = map[string]bool{
	"allusers":              true,
	"allauthenticatedusers": true,
}

func publicACL(d *resource.Declaration) bool {
	for _, key := range []string{"acl", "predefined_acl", "canned_acl"} {
		acl, ok := d.Get(key).String()
		if !ok {
			continue
		}
		acl = strings.ToLower(acl)
		if strings.Contains(acl, "public") || strings.Contains(acl, "authenticated") {
			return true
		}
	}

	// Azure containers and storage accounts
	if access, ok := d.Get("container_access_type").String(); ok {
		switch strings.ToLower(access) {
		case "blob", "container":
			return true
		}
	}
	return d.Get("allow_blob_public_access").True() ||
		d.Get("allow_nested_items_to_be_public").True()
}

func publicAddress(d *resource.Declaration) bool {
	for _, key := range []string{"publicly_accessible", "associate_public_ip_address", "map_public_ip_on_launch"} {
		if d.Get(key).True() {
			return true
		}
	}
	// a GCP access_config block, even an empty one, allocates an external IP
	for _, nic := range d.Blocks("network_interface") {
		if nic.Get("access_config").IsDeclared() {
			return true
		}
	}
	for _, net := range d.Attributes().BlocksAt("settings", "ip_configuration", "authorized_networks") {
		if isOpenSource(net.Get("value").Strings()...) {
			return true
		}
	}
	return false
}

func publicMember(d *resource.Declaration) bool {
	members := append(d.Get("member").Strings(), d.Get("members").Strings()...)
	for _, m := range members {
		if publicGrantees[strings.ToLower(m)] {
			return true
		}
	}
	return false
}

func openIngress(d *resource.Declaration) bool {
	for _, rule := range ingressRules(d) {
		if rule.open {
			return true
		}
	}
	return false
}

func corsWildcard(d *resource.Declaration) bool {
	root := d.Attributes()
	var rules []resource.Block
	rules = append(rules, root.Blocks("cors_rule")...)
	rules = append(rules, root.Blocks("cors")...)
	rules = append(rules, root.BlocksAt("blob_properties", "cors_rule")...)

	for _, rule := range rules {
		for _, key := range []string{"allowed_origins", "allowed_methods", "origin", "method"} {
			if contains(rule.Get(key).Strings(), "*") {
				return true
			}
		}
	}
	return false
}

func init() {
	mustRegister(
		&extractor{
			name:        PublicAccess,
			description: "Resource is reachable from any network origin",
			def:         Bool(false),
			fn: func(d *resource.Declaration, _ Options) Value {
				return Bool(publicACL(d) || publicAddress(d) || publicMember(d) ||
					openIngress(d) || publicPrincipal(d))
			},
		},
		&extractor{
			name:        CORSWildcard,
			description: "A cross-origin rule allows any origin or method",
			def:         Bool(false),
			fn: func(d *resource.Declaration, _ Options) Value {
				return Bool(corsWildcard(d))
			},
		},
	)
}
