package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MarcoPoloResearchLab/pks/internal/api"
	"github.com/spf13/cobra"
)

var errMissingPassword = errors.New("password is required")

func (c *cli) loginCommand() *cobra.Command {
	var credentials api.Credentials
	cmd := &cobra.Command{
		Use:         "login",
		Short:       "Sign in and store the session",
		Args:        cobra.NoArgs,
		Annotations: requireGuest(),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := resolvePassword(cmd.InOrStdin(), credentials.Password)
			if err != nil {
				return err
			}
			credentials.Password = password
			user, err := c.app.Session.Login(cmd.Context(), credentials)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", user.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&credentials.Username, "username", "", "Username")
	cmd.Flags().StringVar(&credentials.Email, "email", "", "Email, used when no username is given")
	cmd.Flags().StringVar(&credentials.Password, "password", "", "Password; read from stdin when empty")
	return cmd
}

func (c *cli) registerCommand() *cobra.Command {
	var registration api.Registration
	cmd := &cobra.Command{
		Use:         "register",
		Short:       "Create an account and sign in",
		Args:        cobra.NoArgs,
		Annotations: requireGuest(),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := resolvePassword(cmd.InOrStdin(), registration.Password)
			if err != nil {
				return err
			}
			registration.Password = password
			user, err := c.app.Session.Register(cmd.Context(), registration)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s <%s>\n", user.Username, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&registration.Username, "username", "", "Username")
	cmd.Flags().StringVar(&registration.Email, "email", "", "Email")
	cmd.Flags().StringVar(&registration.Password, "password", "", "Password; read from stdin when empty")
	return cmd
}

func (c *cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "logout",
		Short:       "Sign out and forget the stored session",
		Args:        cobra.NoArgs,
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func (c *cli) whoamiCommand() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:         "whoami",
		Short:       "Show the signed in user",
		Args:        cobra.NoArgs,
		Annotations: requireAuth(),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := c.app.Session.CurrentUser()
			if refresh {
				var err error
				if user, err = c.app.Session.FetchCurrentUser(cmd.Context()); err != nil {
					return err
				}
			}
			return c.emit(cmd, user, func(w io.Writer) {
				fmt.Fprintf(w, "ID:\t%d\n", user.ID)
				fmt.Fprintf(w, "Username:\t%s\n", user.Username)
				fmt.Fprintf(w, "Email:\t%s\n", user.Email)
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Fetch the profile from the server")
	return cmd
}

func resolvePassword(in io.Reader, password string) (string, error) {
	if password != "" {
		return password, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errMissingPassword
	}
	return line, nil
}
