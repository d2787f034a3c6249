package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Fernandogf021207/Scr4per-sub000/pkg/session"
)

var (
	sessionFile       string
	sessionTenant     string
	sessionUserAgent  string
	sessionPassphrase bool
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored platform sessions",
}

var sessionImportCmd = &cobra.Command{
	Use:   "import <platform>",
	Short: "Import a captured storage state for a platform",
	Long: `Store the storage state JSON captured from an authenticated browser
so scrape runs can reuse it. The state lands in the first configured
backend (keychain, encrypted file or plain session directory).`,
	Example: `  # Import an Instagram session from a captured storage state
  scr4per session import instagram --file state.json

  # Import for a specific tenant, prompting for the encryption passphrase
  scr4per session import instagram --file state.json --tenant acme --prompt-passphrase`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionFile == "" {
			return fmt.Errorf("--file is required")
		}

		raw, err := os.ReadFile(sessionFile)
		if err != nil {
			return fmt.Errorf("failed to read storage state: %w", err)
		}
		if !json.Valid(raw) {
			return fmt.Errorf("%s is not valid JSON", sessionFile)
		}

		manager, err := sessionManager()
		if err != nil {
			return err
		}

		state := &session.State{
			Platform:     args[0],
			Tenant:       sessionTenant,
			StorageState: raw,
			UserAgent:    sessionUserAgent,
		}
		if err := manager.Store(state); err != nil {
			return err
		}

		fmt.Printf("stored session %s\n", state.Key())
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := sessionManager()
		if err != nil {
			return err
		}

		states, err := manager.List()
		if err != nil {
			return err
		}
		if len(states) == 0 {
			fmt.Println("no sessions stored")
			return nil
		}

		sort.Slice(states, func(i, j int) bool { return states[i].Key() < states[j].Key() })
		for _, state := range states {
			fmt.Printf("%-30s updated %s\n", state.Key(), state.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <platform>",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := sessionManager()
		if err != nil {
			return err
		}
		if err := manager.Delete(args[0], sessionTenant); err != nil {
			return err
		}
		fmt.Printf("deleted session %s\n", session.Key(args[0], sessionTenant))
		return nil
	},
}

// sessionManager builds the configured session backend chain,
// prompting for the encrypted store passphrase when requested.
func sessionManager() (*session.Manager, error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return nil, err
	}

	opts := session.Options{
		Directory:  cfg.Session.Directory,
		UseKeyring: cfg.Session.UseKeyring,
	}
	if sessionPassphrase {
		passphrase, err := promptPassphrase()
		if err != nil {
			return nil, err
		}
		opts.Passphrase = passphrase
	}
	return session.NewManager(opts)
}

// promptPassphrase reads a passphrase without echoing it.
func promptPassphrase() (string, error) {
	fmt.Fprint(os.Stderr, "Passphrase: ")
	passphrase, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if len(passphrase) == 0 {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	return string(passphrase), nil
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionImportCmd, sessionListCmd, sessionDeleteCmd)

	sessionImportCmd.Flags().StringVarP(&sessionFile, "file", "f", "", "storage state JSON file")
	sessionImportCmd.Flags().StringVar(&sessionUserAgent, "user-agent", "", "user agent the session was captured with")
	sessionCmd.PersistentFlags().StringVar(&sessionTenant, "tenant", "", "tenant the session belongs to")
	sessionCmd.PersistentFlags().BoolVar(&sessionPassphrase, "prompt-passphrase", false, "prompt for the encrypted store passphrase")
}
