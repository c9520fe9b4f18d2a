package features

import (
	"strings"

	"iacsift/internal/resource"
)

// identifierKeys name the attributes that carry a resource's real-world name
var identifierKeys = []string{"bucket", "bucket_prefix", "identifier", "name", "db_name", "cluster_identifier"}

func sensitiveNaming(d *resource.Declaration, keywords []string) bool {
	candidates := []string{d.Name()}
	for _, key := range identifierKeys {
		if s, ok := d.Get(key).String(); ok {
			candidates = append(candidates, s)
		}
	}
	for _, v := range d.Tags() {
		candidates = append(candidates, v)
	}

	for _, c := range candidates {
		c = strings.ToLower(c)
		for _, kw := range keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(c, kw) {
				return true
			}
		}
	}
	return false
}

// tagQuality is the fraction of required tags present. With no required tags
// any tag at all is enough for a full score.
func tagQuality(d *resource.Declaration, required []string) float64 {
	tags := d.Tags()
	if len(tags) == 0 {
		return 0
	}
	if len(required) == 0 {
		return 1
	}
	present := 0
	for _, key := range required {
		if d.HasTag(key) {
			present++
		}
	}
	return float64(present) / float64(len(required))
}

func init() {
	mustRegister(
		&extractor{
			name:        SensitiveNaming,
			description: "Name, identifier or tags contain a sensitive keyword",
			def:         Bool(false),
			fn: func(d *resource.Declaration, opts Options) Value {
				return Bool(sensitiveNaming(d, opts.SensitiveKeywords))
			},
		},
		&extractor{
			name:        HasTags,
			description: "Tags are present and include at least one required tag",
			def:         Bool(false),
			fn: func(d *resource.Declaration, opts Options) Value {
				return Bool(tagQuality(d, opts.RequiredTags) > 0)
			},
		},
		&extractor{
			name:        TagQualityScore,
			description: "Fraction of required tags present",
			def:         Number(0),
			fn: func(d *resource.Declaration, opts Options) Value {
				return Number(tagQuality(d, opts.RequiredTags))
			},
		},
	)
}
