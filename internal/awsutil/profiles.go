package awsutil

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws/defaults"
	"gopkg.in/ini.v1"
)

// SharedFiles returns the credentials and config file paths, honouring
// AWS_SHARED_CREDENTIALS_FILE and AWS_CONFIG_FILE
func SharedFiles() (credsPath, configPath string) {
	credsPath = os.Getenv("AWS_SHARED_CREDENTIALS_FILE")
	if credsPath == "" {
		credsPath = defaults.SharedCredentialsFilename()
	}
	configPath = os.Getenv("AWS_CONFIG_FILE")
	if configPath == "" {
		configPath = defaults.SharedConfigFilename()
	}
	return credsPath, configPath
}

// ListProfiles returns the sorted profile names from the shared AWS files
func ListProfiles() ([]string, error) {
	return ListProfilesFrom(SharedFiles())
}

// ListProfilesFrom returns the sorted profile names declared in credsPath and
// configPath. Missing files are skipped.
func ListProfilesFrom(credsPath, configPath string) ([]string, error) {
	profiles := make(map[string]struct{})

	if err := collectProfiles(credsPath, "", profiles); err != nil {
		return nil, fmt.Errorf("failed to load credentials file: %w", err)
	}
	if err := collectProfiles(configPath, "profile ", profiles); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	result := make([]string, 0, len(profiles))
	for profile := range profiles {
		result = append(result, profile)
	}
	sort.Strings(result)
	return result, nil
}

func collectProfiles(path, prefix string, into map[string]struct{}) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return err
	}
	for _, section := range file.Sections() {
		name := section.Name()
		if name == ini.DefaultSection || name == "DEFAULT" || strings.HasPrefix(name, "sso-session ") {
			continue
		}
		into[strings.TrimPrefix(name, prefix)] = struct{}{}
	}
	return nil
}

// IsValidProfile checks if a profile exists
func IsValidProfile(profile string) bool {
	profiles, err := ListProfiles()
	if err != nil {
		return false
	}

	for _, p := range profiles {
		if p == profile {
			return true
		}
	}
	return false
}
