package features

import (
	"sort"
	"strconv"
	"strings"

	"iacsift/internal/resource"
)

// sensitivePorts are administrative and database ports that should never be
// reachable from the whole internet
var sensitivePorts = []int{22, 23, 1433, 3306, 3389, 5432, 5900, 6379, 9200, 27017}

// openSources are source expressions meaning "any network origin"
var openSources = map[string]bool{
	"0.0.0.0/0": true,
	"::/0":      true,
	"*":         true,
	"internet":  true,
	"any":       true,
}

type portRange struct {
	from, to int
}

func (r portRange) contains(port int) bool {
	return port >= r.from && port <= r.to
}

var allPorts = portRange{from: 0, to: 65535}

// ingressRule is one inbound rule normalized across providers
type ingressRule struct {
	open   bool
	ranges []portRange
}

func isOpenSource(values ...string) bool {
	for _, v := range values {
		if openSources[strings.ToLower(strings.TrimSpace(v))] {
			return true
		}
	}
	return false
}

// ingressRules collects every inbound rule the declaration defines, whichever
// provider layout it uses
func ingressRules(d *resource.Declaration) []ingressRule {
	var rules []ingressRule

	// AWS security groups and network ACLs with inline ingress blocks
	for _, blk := range d.Blocks("ingress") {
		if action, ok := blk.Get("action").String(); ok && strings.EqualFold(action, "deny") {
			continue
		}
		rules = append(rules, ingressRule{
			open:   awsOpen(blk),
			ranges: awsPorts(blk),
		})
	}

	// standalone AWS rule resources
	direction, _ := d.Get("type").String()
	if strings.EqualFold(direction, "ingress") || d.Type() == "aws_vpc_security_group_ingress_rule" {
		root := d.Attributes()
		rules = append(rules, ingressRule{
			open:   awsOpen(root),
			ranges: awsPorts(root),
		})
	}

	// GCP firewalls
	if sources := d.Get("source_ranges").Strings(); len(sources) > 0 {
		dir, ok := d.Get("direction").String()
		if !ok || strings.EqualFold(dir, "INGRESS") {
			rules = append(rules, ingressRule{
				open:   isOpenSource(sources...),
				ranges: gcpPorts(d.Blocks("allow")),
			})
		}
	}

	// Azure network security groups and rules
	azureRules := d.Blocks("security_rule")
	if d.Get("source_address_prefix").IsDeclared() || d.Get("source_address_prefixes").IsDeclared() {
		azureRules = append(azureRules, d.Attributes())
	}
	for _, blk := range azureRules {
		dir, _ := blk.Get("direction").String()
		access, _ := blk.Get("access").String()
		if !strings.EqualFold(dir, "Inbound") || !strings.EqualFold(access, "Allow") {
			continue
		}
		sources := append(blk.Get("source_address_prefix").Strings(), blk.Get("source_address_prefixes").Strings()...)
		ports := append(blk.Get("destination_port_range").Strings(), blk.Get("destination_port_ranges").Strings()...)
		rules = append(rules, ingressRule{
			open:   isOpenSource(sources...),
			ranges: parseRanges(ports),
		})
	}

	return rules
}

func awsOpen(blk resource.Block) bool {
	var sources []string
	for _, key := range []string{"cidr_blocks", "ipv6_cidr_blocks", "cidr_block", "ipv6_cidr_block", "cidr_ipv4", "cidr_ipv6"} {
		sources = append(sources, blk.Get(key).Strings()...)
	}
	return isOpenSource(sources...)
}

func awsPorts(blk resource.Block) []portRange {
	protocol, _ := blk.Get("protocol").String()
	if protocol == "" {
		protocol, _ = blk.Get("ip_protocol").String()
	}
	if protocol == "-1" || strings.EqualFold(protocol, "all") {
		return []portRange{allPorts}
	}

	from, okFrom := blk.Get("from_port").Number()
	to, okTo := blk.Get("to_port").Number()
	if !okFrom && !okTo {
		return nil
	}
	if !okTo {
		to = from
	}
	if !okFrom {
		from = to
	}
	if from < 0 || to < 0 {
		return []portRange{allPorts}
	}
	return []portRange{{from: int(from), to: int(to)}}
}

func gcpPorts(allow []resource.Block) []portRange {
	var ranges []portRange
	for _, blk := range allow {
		protocol, _ := blk.Get("protocol").String()
		ports := blk.Get("ports").Strings()
		if strings.EqualFold(protocol, "all") || len(ports) == 0 {
			ranges = append(ranges, allPorts)
			continue
		}
		ranges = append(ranges, parseRanges(ports)...)
	}
	return ranges
}

// parseRanges reads port expressions such as "22", "1000-2000" or "*"
func parseRanges(exprs []string) []portRange {
	var ranges []portRange
	for _, expr := range exprs {
		expr = strings.TrimSpace(expr)
		if expr == "*" {
			ranges = append(ranges, allPorts)
			continue
		}
		lo, hi, isRange := strings.Cut(expr, "-")
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			continue
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				continue
			}
		}
		ranges = append(ranges, portRange{from: from, to: to})
	}
	return ranges
}

// exposedPorts returns the sensitive ports reachable from any origin, ascending
func exposedPorts(d *resource.Declaration) []int {
	hit := make(map[int]bool)
	for _, rule := range ingressRules(d) {
		if !rule.open {
			continue
		}
		for _, r := range rule.ranges {
			for _, port := range sensitivePorts {
				if r.contains(port) {
					hit[port] = true
				}
			}
		}
	}

	ports := make([]int, 0, len(hit))
	for port := range hit {
		ports = append(ports, port)
	}
	sort.Ints(ports)
	return ports
}

func init() {
	mustRegister(&extractor{
		name:        ExposedAdminPort,
		description: "Sensitive ports reachable from any origin, comma separated, or none",
		def:         Enum("none"),
		fn: func(d *resource.Declaration, _ Options) Value {
			ports := exposedPorts(d)
			if len(ports) == 0 {
				return Enum("none")
			}
			parts := make([]string, len(ports))
			for i, p := range ports {
				parts[i] = strconv.Itoa(p)
			}
			return Enum(strings.Join(parts, ","))
		},
	})
}
