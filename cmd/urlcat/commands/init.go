package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/urlcat/pkg/config"
)

const starterCUE = `// urlcat invocation
name:        %q
description: "Managed by urlcat"
url_value: [
	"bad.example.com",
	"*.worse.example.net",
]
state:  "present"
commit: false

provider: {
	hostname: %q
	// Prefer PANOS_API_KEY or PANOS_PASSWORD in the environment.
}
`

func newInitCommand(opts *globalOptions) *cobra.Command {
	var (
		name       string
		hostname   string
		format     string
		force      bool
		schemaOnly bool
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter config file",
		Long: `Write a starter invocation file that passes schema validation.

The format follows the file extension (.cue, .yaml, .yml, .json) or --format.
Credentials are left out; supply them through PANOS_* environment variables.
With --schema, the CUE schema used to validate config files is printed instead.`,
		Example: `  # Create urlcat.yaml in the current directory
  urlcat init

  # Create a CUE file for a specific object and device
  urlcat init blocked.cue --name blocked --hostname fw1.example.com

  # Print the config schema
  urlcat init --schema`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if schemaOnly {
				fmt.Fprint(out, strings.TrimLeft(config.SchemaSource(), "\n"))
				return nil
			}

			path := opts.configPath
			if len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				path = "urlcat." + format
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			content, err := starterConfig(path, format, name, hostname)
			if err != nil {
				return err
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", dir, err)
				}
			}
			if err := os.WriteFile(path, content, 0o600); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			if _, err := config.NewLoader().LoadFile(path); err != nil {
				return fmt.Errorf("generated config does not validate: %w", err)
			}

			fmt.Fprintf(out, "✓ Created config file: %s\n", path)
			fmt.Fprintf(out, "  Next: export PANOS_API_KEY=... && urlcat plan -c %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "blocked-sites", "category name for the starter file")
	cmd.Flags().StringVar(&hostname, "hostname", "firewall.example.com", "device address for the starter file")
	cmd.Flags().StringVar(&format, "format", "yaml", "format when the path has no known extension: yaml, json or cue")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.Flags().BoolVar(&schemaOnly, "schema", false, "print the config schema and exit")

	return cmd
}

// starterConfig renders the starter invocation in the format implied by path.
func starterConfig(path, format, name, hostname string) ([]byte, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue", ".yaml", ".yml", ".json":
		format = strings.TrimPrefix(ext, ".")
	}

	inv := config.Invocation{
		Name:        name,
		URLValue:    []string{"bad.example.com", "*.worse.example.net"},
		Description: "Managed by urlcat",
		State:       "present",
		Provider:    config.ProviderConfig{Hostname: hostname},
	}

	switch format {
	case "cue":
		return []byte(fmt.Sprintf(starterCUE, name, hostname)), nil
	case "yaml", "yml":
		return yaml.Marshal(inv)
	case "json":
		var b strings.Builder
		if err := writeJSON(&b, inv); err != nil {
			return nil, err
		}
		return []byte(b.String()), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}
