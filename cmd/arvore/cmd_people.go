package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"arvore/cmd/arvore/ui"
	"arvore/internal/api"
	"arvore/internal/form"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// personFlags are the editable fields of a person. Only flags given on the
// command line are sent; an empty value clears the field.
type personFlags struct {
	nome, genero, nascimento, local, estado string
	falecimento, status, historia, foto     string
	incerta                                 bool
	pai, mae, conjuge                       int
}

func (f *personFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.nome, "nome", "", "Nome completo")
	fs.StringVar(&f.genero, "genero", "", "Gênero (M ou F)")
	fs.StringVar(&f.nascimento, "nascimento", "", "Data de nascimento (AAAA-MM-DD)")
	fs.StringVar(&f.local, "local", "", "Local de nascimento")
	fs.StringVar(&f.estado, "estado", "", "Estado de nascimento")
	fs.StringVar(&f.falecimento, "falecimento", "", "Data de falecimento (AAAA-MM-DD)")
	fs.BoolVar(&f.incerta, "falecimento-incerto", false, "A data de falecimento é incerta")
	fs.StringVar(&f.status, "status", form.DefaultStatusVida, "Situação: Vivo(a) ou Falecido(a)")
	fs.StringVar(&f.historia, "historia", "", "História pessoal (markdown)")
	fs.StringVar(&f.foto, "foto", "", "Arquivo de foto para enviar")
	fs.IntVar(&f.pai, "pai", 0, "ID do pai (0 remove)")
	fs.IntVar(&f.mae, "mae", 0, "ID da mãe (0 remove)")
	fs.IntVar(&f.conjuge, "conjuge", 0, "ID do cônjuge (0 remove)")
}

// input builds the request from the flags that were set. Required fields are
// always sent on create.
func (f *personFlags) input(fs *pflag.FlagSet, create bool) api.PersonInput {
	var in api.PersonInput
	str := func(name, v string) *string {
		if create && (name == "nome" || name == "genero" || name == "status") {
			return api.String(v)
		}
		if !fs.Changed(name) {
			return nil
		}
		return api.String(v)
	}
	num := func(name string, v int) *int {
		if !fs.Changed(name) {
			return nil
		}
		return api.Int(v)
	}
	in.Nome = str("nome", f.nome)
	in.Genero = str("genero", f.genero)
	in.StatusVida = str("status", f.status)
	in.DataNascimento = str("nascimento", f.nascimento)
	in.LocalNascimento = str("local", f.local)
	in.EstadoNascimento = str("estado", f.estado)
	in.DataFalecimento = str("falecimento", f.falecimento)
	in.HistoriaPessoal = str("historia", f.historia)
	in.Pai = num("pai", f.pai)
	in.Mae = num("mae", f.mae)
	in.Conjuge = num("conjuge", f.conjuge)
	if fs.Changed("falecimento-incerto") {
		in.DataFalecimentoIncerta = api.Bool(f.incerta)
	}
	in.FotoPath = f.foto
	return in
}

func orValue(p *string, fallback string) string {
	if p != nil {
		return *p
	}
	return fallback
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id inválido: %q", s)
	}
	return id, nil
}

func newPeopleCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "people",
		Aliases: []string{"pessoas"},
		Short:   "Gerenciar as pessoas da sua linhagem",
	}
	cmd.AddCommand(newPeopleListCmd(o))
	cmd.AddCommand(newPeopleGetCmd(o))
	cmd.AddCommand(newPeopleCreateCmd(o))
	cmd.AddCommand(newPeopleUpdateCmd(o))
	cmd.AddCommand(newPeopleDeleteCmd(o))
	cmd.AddCommand(newPeopleSetMeCmd(o))
	return cmd
}

func newPeopleListCmd(o *options) *cobra.Command {
	var filter string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Listar pessoas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.requireLogin(); err != nil {
				return err
			}

			persons, err := e.client.ListPersons(cmd.Context())
			if err != nil {
				return describe(err)
			}
			shown := make([]api.Person, 0, len(persons))
			for _, p := range persons {
				if ui.MatchPerson(p, filter) {
					shown = append(shown, p)
				}
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(shown)
			}
			if len(shown) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nenhuma pessoa encontrada.")
				return nil
			}
			me, hasMe := e.state.CurrentUserID()
			fmt.Fprint(cmd.OutOrStdout(), ui.PersonTable(shown, me, hasMe).View(ui.NewStyles(ui.LightTheme())))
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Filtrar por nome ou local (ignora acentos)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Saída em JSON")
	return cmd
}

func newPeopleGetCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Mostrar uma pessoa em JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			e, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.requireLogin(); err != nil {
				return err
			}
			p, err := e.client.GetPerson(cmd.Context(), id)
			if err != nil {
				return describe(err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}
}

func newPeopleCreateCmd(o *options) *cobra.Command {
	var f personFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Adicionar uma pessoa",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := form.Person(f.nome, f.genero, f.status); err != nil {
				return describe(err)
			}
			e, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.requireLogin(); err != nil {
				return err
			}
			p, err := e.client.CreatePerson(cmd.Context(), f.input(cmd.Flags(), true))
			if err != nil {
				return fmt.Errorf("Erro: %s", api.Message(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pessoa criada com sucesso! (id %d)\n", p.PersonID())
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newPeopleUpdateCmd(o *options) *cobra.Command {
	var f personFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Alterar campos de uma pessoa",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			e, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.requireLogin(); err != nil {
				return err
			}
			current, err := e.client.GetPerson(cmd.Context(), id)
			if err != nil {
				return describe(err)
			}
			in := f.input(cmd.Flags(), false)
			if err := form.Person(orValue(in.Nome, current.Nome), orValue(in.Genero, current.Genero),
				orValue(in.StatusVida, current.StatusVida)); err != nil {
				return describe(err)
			}
			if _, err := e.client.UpdatePerson(cmd.Context(), id, in); err != nil {
				return fmt.Errorf("Erro: %s", api.Message(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Pessoa atualizada com sucesso!")
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newPeopleDeleteCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Excluir uma pessoa",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			e, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.requireLogin(); err != nil {
				return err
			}
			p, err := e.client.GetPerson(cmd.Context(), id)
			if err != nil {
				return describe(err)
			}
			if err := e.client.DeletePerson(cmd.Context(), id); err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "'%s' excluído(a) com sucesso.\n", p.Nome)
			return nil
		},
	}
}

func newPeopleSetMeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set-me <id>",
		Short: "Definir a pessoa que você representa na árvore",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			e, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.requireLogin(); err != nil {
				return err
			}
			p, err := e.client.GetPerson(cmd.Context(), id)
			if err != nil {
				return describe(err)
			}
			if err := e.auth.SetCurrentUserPerson(cmd.Context(), id, p.Nome); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "'%s' definido(a) como você.\n", p.Nome)
			return nil
		},
	}
}
