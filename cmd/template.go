// -- cmd/template.go --
package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"campusdaily/internal/campus/auth"
	"campusdaily/internal/campus/collector"
	"campusdaily/internal/config"
	"campusdaily/internal/observability"
)

var (
	templateUsername string
	templatePassword string
	templateSchool   string
	templateOut      string
	templateAll      bool
)

// templateCmd logs in once and emits a profile skeleton listing every open
// form with its candidate answers, for the user to prune into a real profile.
var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Generate a profile skeleton from the forms currently open for a user.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		log := observability.GetLogger()

		session, err := auth.NewSession(templateUsername, templatePassword, cfg.Network, log)
		if err != nil {
			return err
		}
		defer session.Close()

		inst, err := session.ResolveInstitution(ctx, templateSchool)
		if err != nil {
			return err
		}
		ok, err := session.Login(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("login rejected for %s", templateUsername)
		}

		catalog := collector.New(session.Client(), inst.Root, cfg.Network.SlowRequestTimeout, log)
		forms, err := catalog.List(ctx)
		if err != nil {
			return err
		}

		profile := config.Profile{
			Username:   templateUsername,
			SchoolName: templateSchool,
			Address:    "FILL ME IN",
		}
		for _, form := range forms {
			if err := catalog.FetchSchema(ctx, form); err != nil {
				return err
			}
			profile.AnswerSets = append(profile.AnswerSets, form.Template(!templateAll))
		}

		out := templateOut
		if out == "" {
			out = templateUsername + ".config.json"
		}
		if err := config.WriteProfile(out, &profile); err != nil {
			return err
		}
		log.Info("Profile skeleton written",
			zap.String("path", out), zap.Int("forms", len(profile.AnswerSets)))
		return nil
	},
}

func init() {
	templateCmd.Flags().StringVarP(&templateUsername, "username", "u", "", "portal username (student id)")
	templateCmd.Flags().StringVarP(&templatePassword, "password", "p", "", "portal password")
	templateCmd.Flags().StringVarP(&templateSchool, "school", "s", "", "exact institution name as listed in the directory")
	templateCmd.Flags().StringVarP(&templateOut, "out", "o", "", "output path (default <username>.config.json)")
	templateCmd.Flags().BoolVar(&templateAll, "all", false, "include non-required entries")
	templateCmd.MarkFlagRequired("username")
	templateCmd.MarkFlagRequired("password")
	templateCmd.MarkFlagRequired("school")
	rootCmd.AddCommand(templateCmd)
}
