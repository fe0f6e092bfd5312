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

	"osufetch/pkg/auth"
	"osufetch/pkg/ui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage osu! API credentials",
	Long: `Manage stored osu! API credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)

Never share your credentials or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [profile]",
	Short: "Store osu! API credentials securely",
	Long: `Store osu! API credentials in the system keychain or encrypted file.

You will be prompted for:
  - Legacy API key (player lookups)
  - OAuth client id and secret (recent scores)`,
	Example: `  # Interactive login to the default profile
  osufetch auth login

  # Store a second set of credentials
  osufetch auth login alt`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [profile]",
	Short: "Remove stored credentials",
	Args:  cobra.MaximumNArgs(1),
	Run:   runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List stored credential profiles",
	Long:  `List stored credential profiles with secrets masked.`,
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err)
		os.Exit(1)
	}

	profile := auth.DefaultProfile
	if len(args) > 0 {
		profile = strings.TrimSpace(args[0])
	}

	reader := bufio.NewReader(os.Stdin)
	auth.ShowCredentialGuide()

	if existing, _ := manager.Retrieve(profile); existing != nil {
		fmt.Printf("\nProfile '%s' already exists. Update credentials? (y/N): ", profile)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Println("\nSecrets are hidden as you type.")
	fmt.Println()

	fmt.Print("Legacy API key: ")
	apiKey, err := readPassword(reader)
	if err != nil {
		ui.PrintError("Failed to read API key", err)
		os.Exit(1)
	}

	fmt.Print("OAuth client id: ")
	clientID, err := reader.ReadString('\n')
	if err != nil {
		ui.PrintError("Failed to read client id", err)
		os.Exit(1)
	}
	clientID = strings.TrimSpace(clientID)

	fmt.Print("OAuth client secret: ")
	clientSecret, err := readPassword(reader)
	if err != nil {
		ui.PrintError("Failed to read client secret", err)
		os.Exit(1)
	}

	creds := &auth.Credentials{
		Profile:      profile,
		APIKey:       apiKey,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		LastModified: time.Now(),
	}

	masked := auth.Sanitize(creds)
	fmt.Println("\nSummary:")
	fmt.Printf("   Profile: %s\n", profile)
	fmt.Printf("   API key: %s\n", masked.APIKey)
	fmt.Printf("   Client id: %s\n", masked.ClientID)
	fmt.Printf("   Client secret: %s\n", masked.ClientSecret)

	if err := manager.Store(creds); err != nil {
		ui.PrintError("Failed to store credentials", err)
		os.Exit(1)
	}

	ui.PrintSuccess("Credentials saved: " + profile)
	if profile == auth.DefaultProfile {
		fmt.Println("\nStart watching with:")
		fmt.Println("   $ osufetch watch -p <player>")
	} else {
		fmt.Println("\nUse this profile with:")
		fmt.Printf("   $ osufetch watch -p <player> --profile %s\n", profile)
	}
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err)
		os.Exit(1)
	}

	profile := auth.DefaultProfile
	if len(args) > 0 {
		profile = args[0]
	}

	if err := manager.Delete(profile); err != nil {
		ui.PrintError("Failed to remove credentials", err)
		os.Exit(1)
	}
	ui.PrintSuccess("Credentials removed: " + profile)
}

func runStatus(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err)
		os.Exit(1)
	}

	profiles, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list credentials", err)
		os.Exit(1)
	}

	if len(profiles) == 0 {
		ui.PrintInfo("No stored credentials", "use 'osufetch auth login' to add them")
		return
	}

	for _, creds := range profiles {
		masked := auth.Sanitize(creds)
		fmt.Printf("Profile: %s\n", masked.Profile)
		fmt.Printf("   API key: %s\n", masked.APIKey)
		fmt.Printf("   Client id: %s\n", masked.ClientID)
		fmt.Printf("   Client secret: %s\n", masked.ClientSecret)
		if !masked.LastModified.IsZero() {
			fmt.Printf("   Last modified: %s\n", masked.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
}

// readPassword reads a secret from stdin without echoing when stdin is a terminal
func readPassword(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
