package cli

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuedeck/cuedeck/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ CueDeck Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 CueDeck Status")
		fmt.Printf("Version: %s\n", version)

		// Check config
		configPath, _ := config.ConfigPath()
		if _, err := os.Stat(configPath); err == nil {
			fmt.Println("Config:  ✓ Found (" + configPath + ")")
		} else {
			fmt.Println("Config:  ✗ Not found (defaults apply)")
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Println("Config:  ? Unable to load config")
			return
		}

		// Check shared database
		if _, err := os.Stat(cfg.Paths.DBPath); err == nil {
			fmt.Println("DB:      ✓ Found (" + cfg.Paths.DBPath + ")")
		} else {
			fmt.Println("DB:      ✗ Not found (created on first serve)")
		}

		// Probe the running console
		client := &http.Client{Timeout: 2 * time.Second}
		url := fmt.Sprintf("http://%s:%d/api/v1/status", cfg.Console.Host, cfg.Console.Port)
		if resp, err := client.Get(url); err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			fmt.Println("Console: ✓ Running (" + url + ")")
		} else {
			fmt.Println("Console: ✗ Not running (run 'cuedeck serve')")
		}

		if cfg.Notify.Slack.Enabled {
			fmt.Println("Slack:   ✓ Enabled")
		} else {
			fmt.Println("Slack:   ✗ Disabled")
		}
		if cfg.Notify.Kafka.Enabled {
			fmt.Println("Kafka:   ✓ Enabled (" + cfg.Notify.Kafka.Topic + ")")
		} else {
			fmt.Println("Kafka:   ✗ Disabled")
		}
	},
}
