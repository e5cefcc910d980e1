package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"taskdeck/internal/gateway"
	"taskdeck/internal/session"
)

var loginCmd = &cobra.Command{
	Use:   "login [username] [password]",
	Short: "Log in with a username (or email) and password",
	Args:  cobra.ExactArgs(2),
	Run: withApp(func(a *app, args []string) error {
		ctx := context.Background()
		if err := a.session.Login(ctx, args[0], args[1]); err != nil {
			if gateway.IsAuth(err) {
				return errors.New("invalid credentials")
			}
			return err
		}
		user, _ := a.session.CurrentUser()
		fmt.Printf("Logged in as %s <%s>\n", user.Name, user.Email)
		return nil
	}),
}

var signupCmd = &cobra.Command{
	Use:   "signup [email] [password] [name]",
	Short: "Create an account and log in",
	Args:  cobra.MinimumNArgs(3),
	Run: withApp(func(a *app, args []string) error {
		ctx := context.Background()
		name := strings.Join(args[2:], " ")
		if err := a.session.Signup(ctx, args[0], args[1], name); err != nil {
			return err
		}
		user, _ := a.session.CurrentUser()
		fmt.Printf("Welcome, %s! You are logged in.\n", user.Name)
		return nil
	}),
}

var oauthCmd = &cobra.Command{
	Use:   "oauth [code]",
	Short: "Log in via Google",
	Long: `Without arguments, opens the Google consent page in your browser.
Run it again with the authorization code from the redirect to finish.`,
	Args: cobra.MaximumNArgs(1),
	Run: withApp(func(a *app, args []string) error {
		ctx := context.Background()
		if len(args) == 0 {
			return a.session.StartOAuth(ctx)
		}
		if err := a.session.CompleteOAuth(ctx, args[0], ""); err != nil {
			return err
		}
		user, _ := a.session.CurrentUser()
		fmt.Printf("Logged in as %s <%s>\n", user.Name, user.Email)
		return nil
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a valid session exists",
	Args:  cobra.NoArgs,
	Run: withApp(func(a *app, args []string) error {
		err := a.session.CheckStatus(context.Background())
		if a.session.State() == session.StateAuthenticated {
			user, _ := a.session.CurrentUser()
			fmt.Printf("Logged in as %s <%s>\n", user.Name, user.Email)
			return nil
		}
		if err != nil && !gateway.IsAuth(err) && !errors.Is(err, session.ErrNotAuthenticated) {
			return err
		}
		fmt.Println("Not logged in")
		return nil
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and clear local session data",
	Args:  cobra.NoArgs,
	Run: withApp(func(a *app, args []string) error {
		a.session.Logout(context.Background())
		fmt.Println("Logged out")
		return nil
	}),
}
