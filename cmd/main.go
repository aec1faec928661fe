package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/makhammatovb/telegram-group-manager/internal/config"
	"github.com/makhammatovb/telegram-group-manager/internal/groups"
	"github.com/makhammatovb/telegram-group-manager/internal/logger"
	"github.com/makhammatovb/telegram-group-manager/internal/membership"
	"github.com/makhammatovb/telegram-group-manager/internal/server"
	"github.com/makhammatovb/telegram-group-manager/internal/session"
	"github.com/makhammatovb/telegram-group-manager/internal/snapshot"
	"github.com/makhammatovb/telegram-group-manager/internal/telegram"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "telegram-group-manager",
	Short: "Telegram group membership automation",
	Long: `A tool for tracking the Telegram groups an account has joined and for
bulk-inviting or removing a user across a list of groups.

This application supports two modes:
- One-shot mode: run a single operation from the command line and exit
- Server mode: run continuously and expose each operation over an HTTP API`,
}

// getGroupsCmd represents the get_groups command
var getGroupsCmd = &cobra.Command{
	Use:   "get_groups",
	Short: "Fetch joined groups and report newly joined ones",
	Long: `Fetch the account's joined groups and channels, compare them against the
last saved snapshot and report any newly joined ones. The snapshot is
rewritten with the current set on every run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGetGroups()
	},
}

// inviteUserCmd represents the invite_user command
var inviteUserCmd = &cobra.Command{
	Use:   "invite_user <user_username> <group_username>...",
	Short: "Invite a user to one or more groups",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch("invite", args[0], args[1:])
	},
}

// removeUserCmd represents the remove_user command
var removeUserCmd = &cobra.Command{
	Use:   "remove_user <user_username> <group_username>",
	Short: "Remove a user from a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch("remove", args[0], args[1:])
	},
}

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Create a fresh session and complete the login interactively",
	Long: `Discard any existing session, request a verification code for the
configured phone number and prompt for the code on standard input.

Accounts with two-step verification enabled cannot complete the login here;
password submission is not supported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLogin()
	},
}

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run in server mode with HTTP API and optional scheduling",
	Long: `Run the application in server mode. This provides an HTTP API for session
login, group detection and batch invite/remove operations. If scheduling is
enabled in configuration, group detection also runs on the configured cron
schedule.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

// validateConfigCmd represents the validate-config command
var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file for syntax and required fields.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateConfig()
	},
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("telegram-group-manager version 0.1.0")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(getGroupsCmd)
	rootCmd.AddCommand(inviteUserCmd)
	rootCmd.AddCommand(removeUserCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(validateConfigCmd)
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads the config file when one exists and falls back to the
// API_ID/API_HASH/PHONE_NUMBER environment variables otherwise.
func initConfig() {
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	} else {
		if found, ferr := config.FindConfigFile(); ferr == nil {
			cfgFile = found
			cfg, err = config.Load(cfgFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(1)
			}
		} else {
			cfg = config.FromEnv()
		}
	}

	cfg.SetDefaults()
}

// runGetGroups executes the fetch-and-diff once and prints the outcome.
func runGetGroups() error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	log := logger.Setup(cfg.App.LogLevel)
	apiID, _ := strconv.Atoi(cfg.Telegram.APIID)
	client := telegram.NewGotdClient(apiID, cfg.Telegram.APIHash, cfg.Telegram.SessionFile, log)

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	store := snapshot.NewStore(cfg.Telegram.SnapshotFile)
	tracker := groups.NewTracker(client, store, cfg.Telegram.DialogLimit, log)

	result, err := tracker.DetectNewGroups(ctx)
	if err != nil {
		return err
	}

	switch {
	case result.Initial:
		fmt.Println("Initial group list saved.")
	case len(result.NewGroups) > 0:
		fmt.Printf("New groups detected: %d\n", len(result.NewGroups))
		fmt.Println(strings.Repeat("-", 30))
		for _, record := range result.NewGroups {
			fmt.Printf("Title: %s\n", record.Title)
			fmt.Printf("Username: %s\n", record.Username)
			fmt.Println(strings.Repeat("-", 30))
		}
	default:
		fmt.Println("No new groups detected.")
	}

	return nil
}

// runBatch executes one invite or remove batch from the command line.
func runBatch(verb, userUsername string, groupUsernames []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	log := logger.Setup(cfg.App.LogLevel)
	apiID, _ := strconv.Atoi(cfg.Telegram.APIID)
	client := telegram.NewGotdClient(apiID, cfg.Telegram.APIHash, cfg.Telegram.SessionFile, log)

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	delay := time.Duration(cfg.Batch.DelaySeconds) * time.Second
	mutator := membership.NewMutator(client, delay, log)

	var err error
	if verb == "invite" {
		err = mutator.InviteUserToGroups(ctx, userUsername, groupUsernames)
	} else {
		err = mutator.RemoveUserFromGroups(ctx, userUsername, groupUsernames)
	}
	if err != nil {
		return err
	}

	if verb == "invite" {
		fmt.Printf("User %s invited to groups %v\n", userUsername, groupUsernames)
	} else {
		fmt.Printf("User %s removed from groups %v\n", userUsername, groupUsernames)
	}
	return nil
}

// runLogin creates a fresh session and completes the login interactively.
func runLogin() error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	log := logger.Setup(cfg.App.LogLevel)
	factory := func(apiID int, apiHash string) telegram.Client {
		return telegram.NewGotdClient(apiID, apiHash, cfg.Telegram.SessionFile, log)
	}
	gate := session.NewGate(factory, cfg.Telegram.SessionFile, log)
	defer gate.Close()

	ctx := context.Background()
	creds := session.Credentials{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		PhoneNumber: cfg.Telegram.PhoneNumber,
	}
	if err := gate.Initialize(ctx, creds); err != nil {
		return err
	}

	fmt.Printf("Verification code sent to %s\n", cfg.Telegram.PhoneNumber)
	fmt.Print("Enter code: ")

	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read code: %w", err)
	}
	code = strings.TrimSpace(code)

	if err := gate.CompleteLogin(ctx, code); err != nil {
		return err
	}

	fmt.Println("Login successful.")
	return nil
}

// runServer executes server mode
func runServer() error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	log := logger.Setup(cfg.App.LogLevel)
	srv := server.NewServer(cfg, log)
	return srv.Start()
}

// validateConfig validates the configuration file
func validateConfig() error {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed:\n%v\n", err)
		return err
	}

	if cfgFile != "" {
		fmt.Printf("Configuration file '%s' is valid\n", cfgFile)
	} else {
		fmt.Println("Configuration from environment is valid")
	}
	fmt.Printf("   - Phone number: %s\n", cfg.Telegram.PhoneNumber)
	fmt.Printf("   - Session file: %s\n", cfg.Telegram.SessionFile)
	fmt.Printf("   - Snapshot file: %s\n", cfg.Telegram.SnapshotFile)
	fmt.Printf("   - Log level: %s\n", cfg.App.LogLevel)

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
