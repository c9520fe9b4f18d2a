package list

import (
	"fmt"

	"github.com/spf13/cobra"

	"iacsift/internal/features"
)

type featureInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Default     interface{} `json:"default"`
	Description string      `json:"description"`
}

// NewFeaturesCmd creates and returns the features command
func NewFeaturesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "List the features extracted from every resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			var infos []featureInfo
			for _, name := range features.DefaultRegistry.Names() {
				e, err := features.DefaultRegistry.Get(name)
				if err != nil {
					continue
				}
				def := e.Default()
				infos = append(infos, featureInfo{
					Name:        name,
					Type:        def.Type().String(),
					Default:     def.Raw(),
					Description: e.Description(),
				})
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return writeJSON(out, infos)
			}
			for _, info := range infos {
				fmt.Fprintf(out, "%-26s %-7s %s\n", info.Name, info.Type, info.Description)
			}
			return nil
		},
	}
}
