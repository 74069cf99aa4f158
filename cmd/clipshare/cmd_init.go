package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kuuji/clipshare/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create a config file",
	Long: `Prompts for the relay URL, auth token, and a client name, then
writes them to the config file (default: $HOME/.config/clipshare/config.toml).`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path := globalConfigPath
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		var overwrite bool
		confirm := huh.NewConfirm().
			Title(fmt.Sprintf("%s already exists. Overwrite?", path)).
			Value(&overwrite)
		if err := huh.NewForm(huh.NewGroup(confirm)).WithTheme(customHuhTheme()).Run(); err != nil {
			return fmt.Errorf("running confirmation prompt: %w", err)
		}
		if !overwrite {
			fmt.Println("Keeping existing config.")
			return nil
		}
	}

	var (
		uri   string
		token string
		name  = defaultClientName()
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Relay URL").
				Description("ws:// or wss:// address of the clipshare relay").
				Placeholder("wss://relay.example.com/ws").
				Value(&uri).
				Validate(validateURI),
			huh.NewInput().
				Title("Auth token").
				Description("Issued by the relay operator").
				EchoMode(huh.EchoModePassword).
				Value(&token).
				Validate(huh.ValidateNotEmpty()),
			huh.NewInput().
				Title("Client name").
				Description("Unique identifier for this device").
				Value(&name).
				Validate(huh.ValidateNotEmpty()),
		),
	).WithTheme(customHuhTheme())

	if err := form.Run(); err != nil {
		return fmt.Errorf("running setup form: %w", err)
	}

	cfg := config.Config{URI: uri, Token: token, Name: name}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("Wrote config to %s\n", path)
	return nil
}

func validateURI(s string) error {
	tmp := config.Config{URI: s, Token: "placeholder", Name: "placeholder"}
	if err := tmp.Validate(); err != nil {
		return fmt.Errorf("must be a ws:// or wss:// URL")
	}
	return nil
}

func defaultClientName() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return uuid.NewString()
	}
	return hostname
}
