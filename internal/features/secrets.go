package features

import (
	"regexp"
	"strings"

	"iacsift/internal/resource"
)

// credentialPatterns match well-known credential formats anywhere in a value,
// including inline scripts such as user_data
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)aws_secret_access_key\s*[=:]\s*["']?[A-Za-z0-9/+=]{40}`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	regexp.MustCompile(`xox[baprs]-[A-Za-z0-9-]{10,}`),
	regexp.MustCompile(`sk_live_[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
}

// credentialAssignment matches KEY=value pairs in scripts; group 1 is the key
// and group 2 the value
var credentialAssignment = regexp.MustCompile(`(?i)([a-z_]*(?:password|passwd|pwd|secret|api_?key|token|access_?key)[a-z_]*)\s*(?:=|:\s)\s*["']?([^\s"'$]{4,})`)

// referenceKeySuffixes name variables that hold the location of a secret
var referenceKeySuffixes = []string{"_file", "_path", "_arn", "_ref"}

// secretKeys are attribute names whose literal values are credentials
var secretKeys = map[string]bool{
	"password":                     true,
	"master_password":              true,
	"admin_password":               true,
	"root_password":                true,
	"administrator_login_password": true,
	"secret":                       true,
	"client_secret":                true,
	"secret_key":                   true,
	"access_key":                   true,
	"secret_access_key":            true,
	"api_key":                      true,
	"token":                        true,
	"auth_token":                   true,
	"private_key":                  true,
	"connection_string":            true,
}

var secretSuffixes = []string{"_password", "_secret", "_token"}

// referencePrefixes mark values that point at a secret instead of holding one
var referencePrefixes = []string{
	"var.", "local.", "data.", "module.", "random_password.", "aws_secretsmanager",
	"${", "{{resolve:", "arn:aws:secretsmanager", "arn:aws:ssm", "/run/secrets/",
}

// resourceReference matches addresses such as aws_db_instance.main.password
var resourceReference = regexp.MustCompile(`^[a-z][a-z0-9_]*\.[a-z0-9_-]+\.[a-z0-9_]+`)

func isReference(value string) bool {
	v := strings.TrimSpace(value)
	for _, prefix := range referencePrefixes {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	return resourceReference.MatchString(v)
}

// assignsLiteral reports whether s assigns a literal credential to a
// credential-named variable. Values that are absolute paths, or keys that name
// a file or path, point at a mounted secret.
func assignsLiteral(s string) bool {
	for _, m := range credentialAssignment.FindAllStringSubmatch(s, -1) {
		key, value := strings.ToLower(m[1]), m[2]
		if strings.HasPrefix(value, "/") || isReference(value) {
			continue
		}
		referenced := false
		for _, suffix := range referenceKeySuffixes {
			if strings.HasSuffix(key, suffix) {
				referenced = true
				break
			}
		}
		if !referenced {
			return true
		}
	}
	return false
}

func isSecretKey(path string) bool {
	key := path
	if i := strings.LastIndex(key, "."); i >= 0 {
		key = key[i+1:]
	}
	if i := strings.Index(key, "["); i >= 0 {
		key = key[:i]
	}
	key = strings.ToLower(key)
	if secretKeys[key] {
		return true
	}
	for _, suffix := range secretSuffixes {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

func hardcodedSecret(d *resource.Declaration) bool {
	found := false
	d.Walk(func(path string, value interface{}) {
		if found {
			return
		}
		s, ok := value.(string)
		if !ok || strings.TrimSpace(s) == "" || isReference(s) {
			return
		}
		if isSecretKey(path) {
			found = true
			return
		}
		for _, p := range credentialPatterns {
			if p.MatchString(s) {
				found = true
				return
			}
		}
		found = assignsLiteral(s)
	})
	return found
}

func init() {
	mustRegister(&extractor{
		name:        HardcodedSecretPresent,
		description: "An inline literal looks like a credential rather than a reference",
		def:         Bool(false),
		fn: func(d *resource.Declaration, _ Options) Value {
			return Bool(hardcodedSecret(d))
		},
	})
}
