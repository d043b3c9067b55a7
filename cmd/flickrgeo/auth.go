package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"flickrgeo/pkg/auth"
	"flickrgeo/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage API credentials",
	Long: `Manage stored API credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (FLICKRGEO_API_KEY)

Never share your API key or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [label]",
	Short: "Store an API key securely",
	Long: `Store an API key securely in the system keychain or encrypted file.

You will be prompted for:
  - A label for the key (if not provided)
  - The API key
  - The API secret (optional, press Enter to skip)

Request an API key at https://www.flickr.com/services/apps/create/`,
	Example: `  # Interactive login
  flickrgeo auth login

  # Login with a label
  flickrgeo auth login research`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [label]",
	Short: "Remove stored credentials",
	Long: `Remove stored API credentials.

If no label is provided, you will be shown a list of stored keys to
choose from. You can also remove all keys at once.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored API keys",
	Long:  `List all stored API keys with sanitized credential information.`,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var label string
	if len(args) > 0 {
		label = args[0]
	}

	reader := bufio.NewReader(os.Stdin)

	if label == "" {
		fmt.Print("Label for this key (e.g. 'default'): ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read label", err.Error())
			os.Exit(1)
		}
		label = strings.TrimSpace(input)
	}
	if label == "" {
		label = "default"
	}

	if existing, _ := manager.Retrieve(label); existing != nil {
		fmt.Printf("Key '%s' already exists. Update it? (y/N): ", label)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Println("\nEnter your API credentials (they will be hidden as you type):")

	var apiKey string
	for {
		fmt.Print("API key: ")
		apiKey, err = readSecret()
		if err != nil {
			ui.PrintError("Failed to read API key", err.Error())
			os.Exit(1)
		}

		// Keys are 32 hex characters
		if len(apiKey) < 16 {
			fmt.Println("\nThat doesn't look like a valid API key.")
			fmt.Println("It should be a 32 character hexadecimal string.")
			fmt.Print("\nTry again? (Y/n): ")
			retry, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(retry)) == "n" {
				os.Exit(1)
			}
			continue
		}
		break
	}

	fmt.Print("API secret (press Enter to skip): ")
	apiSecret, err := readSecret()
	if err != nil {
		ui.PrintError("Failed to read API secret", err.Error())
		os.Exit(1)
	}

	account := &auth.Account{
		Label:        label,
		APIKey:       apiKey,
		APISecret:    apiSecret,
		LastModified: time.Now(),
	}

	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("API key saved: " + label)
	fmt.Println("\nStart an extraction with:")
	fmt.Println(`  flickrgeo extract <run-name> --bbox "4.85,52.33,4.95,52.40" --from 2012 --to 2016`)
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	if len(args) > 0 {
		label := args[0]
		if err := manager.Delete(label); err != nil {
			ui.PrintError("Failed to remove key", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("Key removed: " + label)
		return
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) == 0 {
		ui.PrintError("No stored keys found", "")
		return
	}

	reader := bufio.NewReader(os.Stdin)

	if len(accounts) == 1 {
		account := accounts[0]
		fmt.Printf("Remove key '%s'? (y/N): ", account.Label)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
		if err := manager.Delete(account.Label); err != nil {
			ui.PrintError("Failed to remove key", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("Key removed: " + account.Label)
		return
	}

	fmt.Println("Select key to remove:")
	for i, account := range accounts {
		fmt.Printf("  %d. %s\n", i+1, account.Label)
	}
	fmt.Printf("  %d. Remove all keys\n", len(accounts)+1)
	fmt.Printf("  0. Cancel\n\n")

	fmt.Print("Choice: ")
	input, _ := reader.ReadString('\n')

	var choice int
	fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

	switch {
	case choice == 0:
		return
	case choice == len(accounts)+1:
		fmt.Print("Remove ALL keys? This cannot be undone! (yes/N): ")
		confirm, _ := reader.ReadString('\n')
		if strings.TrimSpace(confirm) != "yes" {
			return
		}
		if err := manager.DeleteAll(); err != nil {
			ui.PrintError("Failed to remove all keys", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("All keys removed")
	case choice > 0 && choice <= len(accounts):
		account := accounts[choice-1]
		if err := manager.Delete(account.Label); err != nil {
			ui.PrintError("Failed to remove key", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("Key removed: " + account.Label)
	default:
		ui.PrintError("Invalid choice", "")
		os.Exit(1)
	}
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list keys", err.Error())
		os.Exit(1)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored keys", "Use 'flickrgeo auth login' to add one")
		return
	}

	fmt.Println("Stored API keys:")
	fmt.Println()
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. Label: %s\n", i+1, sanitized.Label)
		fmt.Printf("   API Key: %s\n", sanitized.APIKey)
		if sanitized.APISecret != "" {
			fmt.Printf("   API Secret: %s\n", sanitized.APISecret)
		}
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

// readSecret reads a value from stdin without echoing
func readSecret() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
