package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/sharebin/internal/session"
)

// NewLoginCommand creates the login command
func NewLoginCommand(r *runner) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Long: `Sign in and keep the credential in the local store for later commands.
The password is read from stdin when --password is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			if password == "" {
				var err error
				if password, err = readLine(cmd, "Password: "); err != nil {
					return err
				}
			}
			return r.with(cmd, func(app *App) error {
				u, err := app.Session.Login(cmd.Context(), email, password)
				if err != nil {
					return err
				}
				printSignedIn(cmd, u)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")

	return cmd
}

// NewRegisterCommand creates the register command
func NewRegisterCommand(r *runner) *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || email == "" {
				return errors.New("--username and --email are required")
			}
			if password == "" {
				var err error
				if password, err = readLine(cmd, "Password: "); err != nil {
					return err
				}
			}
			return r.with(cmd, func(app *App) error {
				u, err := app.Session.Register(cmd.Context(), username, email, password)
				if err != nil {
					return err
				}
				printSignedIn(cmd, u)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")

	return cmd
}

// NewGoogleLoginCommand creates the google-login command
func NewGoogleLoginCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "google-login",
		Short: "Sign in with a Google account",
		Long: `Sign in with Google using a device code: open the printed URL on any
device and enter the code. Needs GOOGLE_CLIENT_ID (and usually
GOOGLE_CLIENT_SECRET) for an OAuth client of type "TVs and Limited Input".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(app *App) error {
				if !app.Config.GoogleEnabled() {
					return errors.New("google sign-in is not configured (set GOOGLE_CLIENT_ID)")
				}
				u, err := app.Session.GoogleLogin(cmd.Context())
				if err != nil {
					return err
				}
				printSignedIn(cmd, u)
				return nil
			})
		},
	}
}

// NewLogoutCommand creates the logout command
func NewLogoutCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(app *App) error {
				if err := app.Session.Logout(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "Signed out")
				return nil
			})
		},
	}
}

// NewWhoamiCommand creates the whoami command
func NewWhoamiCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(app *App) error {
				u := app.Session.CurrentUser()
				if u == nil {
					return errors.New("not signed in")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> via %s\n", u.Username, u.Email, u.Provider)
				return nil
			})
		},
	}
}

func printSignedIn(cmd *cobra.Command, u *session.User) {
	fmt.Fprintf(cmd.ErrOrStderr(), "Signed in as %s\n", u.Username)
}
