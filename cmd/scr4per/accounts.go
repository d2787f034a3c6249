package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Fernandogf021207/Scr4per-sub000/pkg/models"
)

var (
	accountsPlatform string
	accountCredFile  string
	accountNotes     string
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage the shared scraping account pool",
}

var accountsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show account counts per status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		manager, _, err := connectPool(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		status, err := manager.GetPoolStatus(cmd.Context(), accountsPlatform)
		if err != nil {
			return err
		}

		if status.Platform != "" {
			fmt.Printf("platform: %s\n", status.Platform)
		}
		fmt.Printf("total: %d\n", status.Total)
		for _, s := range []models.AccountStatus{
			models.AccountActive,
			models.AccountBusy,
			models.AccountCooldown,
			models.AccountSuspended,
			models.AccountBanned,
		} {
			if n := status.ByStatus[s]; n > 0 {
				fmt.Printf("  %-9s %d\n", s, n)
			}
		}
		return nil
	},
}

var accountsMaintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Reset cooldowns and reclaim stale busy accounts",
	Long: `Run the periodic pool maintenance pass: cooldown accounts move back
to active with their error count decayed, and busy accounts whose lease
expired (a crashed run never released them) are reclaimed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		manager, _, err := connectPool(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		reset, err := manager.ResetCooldownAccounts(cmd.Context())
		if err != nil {
			return err
		}
		reclaimed, err := manager.ReclaimStaleAccounts(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("cooldowns reset: %d\nstale accounts reclaimed: %d\n", reset, reclaimed)
		return nil
	},
}

var accountsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an account to the pool",
	Long: `Insert a new active account. The credential file holds the captured
storage state JSON the account authenticates with.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if accountsPlatform == "" {
			return fmt.Errorf("--platform is required")
		}
		if accountCredFile == "" {
			return fmt.Errorf("--credential-file is required")
		}

		credential, err := os.ReadFile(accountCredFile)
		if err != nil {
			return fmt.Errorf("failed to read credential file: %w", err)
		}

		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		_, store, err := connectPool(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		now := time.Now()
		account := &models.ScraperAccount{
			ID:         uuid.NewString(),
			Platform:   accountsPlatform,
			Credential: string(credential),
			Status:     models.AccountActive,
			Notes:      accountNotes,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := store.Create(cmd.Context(), account); err != nil {
			return err
		}

		fmt.Printf("added account %s for %s\n", account.ID, account.Platform)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsStatusCmd, accountsMaintainCmd, accountsAddCmd)

	accountsCmd.PersistentFlags().StringVar(&accountsPlatform, "platform", "", "limit to one platform")
	accountsAddCmd.Flags().StringVar(&accountCredFile, "credential-file", "", "file holding the account's storage state JSON")
	accountsAddCmd.Flags().StringVar(&accountNotes, "notes", "", "free-form operator notes")
}
