package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fentz26/tasknet/internal/api"
	"github.com/fentz26/tasknet/internal/auth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate against the workspace",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget stored credentials",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated user",
	RunE:  runWhoami,
}

var (
	loginUser string
)

func init() {
	loginCmd.Flags().StringVar(&loginUser, "user", "", "Username (prompted when omitted)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	username := loginUser
	reader := bufio.NewReader(os.Stdin)

	if username == "" {
		fmt.Print("Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return fmt.Errorf("username is required")
	}

	fmt.Print("Password: ")
	password, err := readPassword(reader)
	if err != nil {
		return err
	}

	client := api.NewClient(apiAddr)
	token, tenant, err := client.Login(context.Background(), username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	mgr, err := auth.NewManager()
	if err != nil {
		return err
	}
	if err := mgr.Save(token, username, tenant); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}

	fmt.Printf("Logged in as %s (workspace %s)\n", username, tenant)
	return nil
}

func readPassword(fallback *bufio.Reader) (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := fallback.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	mgr, err := auth.NewManager()
	if err != nil {
		return err
	}
	if err := mgr.Clear(); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	mgr, err := auth.NewManager()
	if err != nil {
		return err
	}
	creds, err := mgr.Credentials()
	if err != nil {
		return fmt.Errorf("not logged in — run 'tasknet login'")
	}
	fmt.Printf("%s (workspace %s)\n", creds.Username, creds.TenantCode)
	return nil
}

// authedClient builds an API client carrying the stored token.
func authedClient() (*api.Client, *auth.Credentials, error) {
	mgr, err := auth.NewManager()
	if err != nil {
		return nil, nil, err
	}
	creds, err := mgr.Credentials()
	if err != nil {
		return nil, nil, fmt.Errorf("not logged in — run 'tasknet login'")
	}
	client := api.NewClient(apiAddr)
	client.SetToken(creds.Token)
	return client, creds, nil
}
