// Package initcmder provides the init command for initializing a local
// .passage directory in the current working directory.
package initcmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/passagehq/passage/pkg/config"
)

const (
	dirName        = ".passage"
	configFileName = "config.toml"

	fetchTimeout = 10 * time.Second
)

const initLongDesc string = `Initialize a new .passage/ directory in the current working directory.

Creates a local .passage/ directory that takes precedence over the default
~/.passage/ directory for configuration, credentials, and pipeline data
(document store, vector index, embedding cache).

A config.toml is written when none exists. --preset selects its contents:
a provider preset name, or an http(s) URL to fetch a shared config.toml
from. Re-running with --preset replaces the existing config.toml; without
--preset an existing config is left untouched.

This is useful for maintaining separate passage state per project or
directory.

Examples:
  passage init
  passage init --preset openai
  passage init --preset https://configs.example.com/passage/config.toml`

const initShortDesc string = "Initialize a local .passage/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		fmt.Sprintf("config preset name (%s) or URL of a config.toml to fetch", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func runInit(ctx context.Context, preset string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	freshDir := err != nil || !info.IsDir()

	if freshDir {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .passage directory: %w", err)
		}
	}

	// A bare re-init never clobbers an existing config; --preset replaces it.
	configPath := filepath.Join(dir, configFileName)
	if _, err := os.Stat(configPath); err == nil && preset == "" {
		fmt.Printf("Already initialized: %s\n", dir)
		return nil
	}

	cfg, err := resolvePreset(ctx, preset)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("preparing config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if freshDir {
		fmt.Printf("Initialized .passage directory: %s\n", dir)
	} else {
		fmt.Printf("Wrote %s\n", configPath)
	}
	return nil
}

// resolvePreset materializes the config the new directory starts with: the
// defaults, a named provider preset, or a config.toml fetched from a URL.
// Fetched configs may be partial; LoadConfig fills the gaps with defaults.
func resolvePreset(ctx context.Context, preset string) (*config.Config, error) {
	switch {
	case preset == "":
		return config.NewDefaultConfig(), nil
	case strings.HasPrefix(preset, "http://"), strings.HasPrefix(preset, "https://"):
		return fetchConfig(ctx, preset)
	default:
		return config.PresetConfig(preset)
	}
}

func fetchConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating config request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config from %s: HTTP %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading config response: %w", err)
	}

	return config.ParseConfigTOML(body)
}
