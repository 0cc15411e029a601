package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"arvore/internal/api"
	"arvore/internal/form"

	"github.com/spf13/cobra"
)

// readSecret returns flagValue, or the first line of in when the flag was
// not given.
func readSecret(in io.Reader, out io.Writer, prompt, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// describe renders an error for the terminal. Validation errors list every
// field.
func describe(err error) error {
	if msg := form.Message(err); msg != "" {
		return fmt.Errorf("%s (%v)", msg, err)
	}
	return fmt.Errorf("%s", api.Message(err))
}

func newLoginCmd(o *options) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <usuario>",
		Short: "Entrar e guardar a sessão",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			pw, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Senha: ", password)
			if err != nil {
				return err
			}
			res, err := e.auth.Login(cmd.Context(), api.Credentials{Username: strings.TrimSpace(args[0]), Password: pw})
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bem-vindo(a), %s! (usuário %d)\n", res.Username, res.UserID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Senha (lida da entrada padrão se omitida)")
	return cmd
}

func newRegisterCmd(o *options) *cobra.Command {
	var password, password2 string
	cmd := &cobra.Command{
		Use:   "register <usuario>",
		Short: "Criar uma conta e entrar com ela",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			in := bufio.NewReader(cmd.InOrStdin())
			pw, err := readSecret(in, cmd.ErrOrStderr(), "Senha: ", password)
			if err != nil {
				return err
			}
			pw2, err := readSecret(in, cmd.ErrOrStderr(), "Confirmar senha: ", password2)
			if err != nil {
				return err
			}
			res, err := e.auth.Register(cmd.Context(), api.Registration{
				Username:  strings.TrimSpace(args[0]),
				Password:  pw,
				Password2: pw2,
			})
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Conta criada. Bem-vindo(a), %s!\n", res.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Senha")
	cmd.Flags().StringVar(&password2, "password2", "", "Confirmação da senha")
	return cmd
}

func newLogoutCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Encerrar a sessão guardada",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sessão encerrada.")
			return nil
		},
	}
}

func newStatusCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Mostrar a sessão e a configuração",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "API:     %s\n", e.client.BaseURL())
			fmt.Fprintf(out, "Sessão:  %s %s\n", e.cfg.Session.Backend, e.cfg.Session.Path)
			sess, ok := e.state.Snapshot()
			if !ok {
				fmt.Fprintln(out, "Usuário: não autenticado")
				return nil
			}
			fmt.Fprintf(out, "Usuário: %s (pessoa %d)\n", sess.Username, sess.UserID)
			return nil
		},
	}
}
