package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/sparkify/internal/cli/config"
	"github.com/leapstack-labs/sparkify/internal/cli/output"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// projectFile is the sparkify.yaml written by init.
type projectFile struct {
	Environment  string                 `yaml:"environment"`
	StatePath    string                 `yaml:"state_path"`
	Engine       engineSection          `yaml:"engine"`
	Pipeline     pipelineSection        `yaml:"pipeline"`
	Environments map[string]envOverride `yaml:"environments"`
}

type engineSection struct {
	Type     string `yaml:"type"`
	Database string `yaml:"database"`
}

type stageSection struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

type pipelineSection struct {
	Songs     stageSection `yaml:"songs"`
	Logs      stageSection `yaml:"logs"`
	WriteMode string       `yaml:"write_mode,omitempty"`
}

type awsSection struct {
	Region          string `yaml:"region"`
	CredentialsFile string `yaml:"credentials_file"`
}

type envOverride struct {
	Pipeline pipelineSection `yaml:"pipeline"`
	AWS      awsSection      `yaml:"aws"`
}

const configHeader = `# sparkify project configuration.
# Values may be overridden with SPARKIFY_ environment variables
# (SPARKIFY_PIPELINE__SONGS__INPUT for pipeline.songs.input) or flags.
`

func defaultProjectFile() projectFile {
	return projectFile{
		Environment: config.DefaultEnv,
		StatePath:   config.DefaultStateFile,
		Engine:      engineSection{Type: "duckdb"},
		Pipeline: pipelineSection{
			Songs:     stageSection{Input: "data/song_data/*/*/*/*.json", Output: "out"},
			Logs:      stageSection{Input: "data/log_data/*/*/*.json", Output: "out"},
			WriteMode: "error_if_exists",
		},
		Environments: map[string]envOverride{
			"prod": {
				Pipeline: pipelineSection{
					Songs: stageSection{Input: "s3a://udacity-dend/song_data/*/*/*/*.json", Output: "s3a://sparkify-lake/"},
					Logs:  stageSection{Input: "s3a://udacity-dend/log_data/*/*/*.json", Output: "s3a://sparkify-lake/"},
				},
				AWS: awsSection{Region: "us-west-2", CredentialsFile: "dl.cfg"},
			},
		},
	}
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new sparkify project",
		Long: `Initialize a new sparkify project with a sparkify.yaml configuration file.

The generated configuration reads local data in the dev environment and
the public song and log datasets from S3 in the prod environment.

Use --example to also write a small song and log dataset under data/ so
that 'sparkify run' works straight away.`,
		Example: `  # Initialize in current directory
  sparkify init

  # Initialize with sample data
  sparkify init --example

  # Initialize in a new directory
  sparkify init my-lake --example

  # Force overwrite existing config
  sparkify init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			r := NewCommandContextWithoutEngine(cmd).Renderer
			return runInit(r, dir, force, example)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&example, "example", false, "Write a sample song and log dataset under data/")

	return cmd
}

func runInit(r *output.Renderer, dir string, force, example bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileName)
	}

	body, err := yaml.Marshal(defaultProjectFile())
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := os.WriteFile(configPath, append([]byte(configHeader), body...), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	r.StatusLine(config.ConfigFileName, "success", "")

	if example {
		if err := copyTemplate("example", dir, force); err != nil {
			return fmt.Errorf("failed to write example data: %w", err)
		}
		files, _ := listTemplateFiles("example")
		for _, f := range files {
			r.StatusLine(f, "success", "")
		}
	}

	r.Println("")
	r.Success("sparkify project initialized!")
	r.Println("")
	r.Println("Next steps:")
	if !example {
		r.Println("  1. Put song records under data/song_data/ and log records under data/log_data/")
		r.Println("  2. Run 'sparkify run' to build the star schema in out/")
	} else {
		r.Println("  1. Run 'sparkify run' to build the star schema in out/")
	}
	r.Println("  Then 'sparkify show latest' to inspect the run")

	return nil
}
