package commands

import (
	"fmt"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/metabridge/internal/api"
	"github.com/conduit-lang/metabridge/internal/cli/ui"
	"github.com/conduit-lang/metabridge/internal/config"
)

var (
	initOutput   string
	initForce    bool
	initDefaults bool
)

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a metabridge.yaml config file",
		Long: `Ask for the collection name, delete mode, native store and type registry
and write them to a config file. A new metadata collection id is generated
each time; keep it stable once the collection has joined a cohort.`,
		RunE: runInit,
	}

	cmd.Flags().StringVarP(&initOutput, "output", "o", config.DefaultFile, "Path of the config file to write")
	cmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&initDefaults, "defaults", false, "Skip the prompts and write the defaults")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	cfg.Repository.MetadataCollectionID = uuid.NewString()

	if !initDefaults {
		if err := askConfig(cfg); err != nil {
			return err
		}
	}

	if err := config.Write(initOutput, cfg, initForce); err != nil {
		return err
	}

	ui.Success(cmd.OutOrStdout(), "Wrote "+initOutput, noColor)
	fmt.Fprintf(cmd.OutOrStdout(), "  metadata collection id: %s\n", cfg.Repository.MetadataCollectionID)
	return nil
}

func askConfig(cfg *config.Config) error {
	questions := []*survey.Question{
		{
			Name: "name",
			Prompt: &survey.Input{
				Message: "Metadata collection name:",
				Default: cfg.Repository.MetadataCollectionName,
			},
			Validate: survey.Required,
		},
		{
			Name: "deleteMode",
			Prompt: &survey.Select{
				Message: "Delete mode:",
				Options: []string{"soft", "hard"},
				Default: cfg.Repository.DeleteMode,
				Help:    "soft keeps deleted instances until they are purged; hard only supports purge",
			},
		},
		{
			Name: "driver",
			Prompt: &survey.Select{
				Message: "Native store:",
				Options: config.Drivers,
				Default: cfg.Store.Driver,
			},
		},
	}

	answers := struct {
		Name       string
		DeleteMode string
		Driver     string
	}{}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}
	cfg.Repository.MetadataCollectionName = answers.Name
	cfg.Repository.DeleteMode = answers.DeleteMode
	cfg.Store.Driver = answers.Driver

	if cfg.Store.Driver != "memory" {
		prompt := &survey.Input{Message: "Store DSN:"}
		if err := survey.AskOne(prompt, &cfg.Store.DSN, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}

	prompt := &survey.Input{
		Message: "Redis address for the shared type registry (optional):",
		Help:    "Leave empty to keep the type registry in memory",
	}
	if err := survey.AskOne(prompt, &cfg.Registry.RedisAddr); err != nil {
		return err
	}

	portStr := strconv.Itoa(cfg.Server.Port)
	portPrompt := &survey.Input{Message: "Server port:", Default: portStr}
	if err := survey.AskOne(portPrompt, &portStr, survey.WithValidator(validatePort)); err != nil {
		return err
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	var password string
	passwordPrompt := &survey.Password{
		Message: "Password for the admin user (optional):",
		Help:    "Enables basic auth for user admin; leave empty to identify callers by the X-User-Id header",
	}
	if err := survey.AskOne(passwordPrompt, &password); err != nil {
		return err
	}
	if password != "" {
		hash, err := api.HashPassword(password)
		if err != nil {
			return err
		}
		cfg.Auth.Users = map[string]string{"admin": hash}
	}
	return nil
}

func validatePort(ans interface{}) error {
	s, _ := ans.(string)
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}
