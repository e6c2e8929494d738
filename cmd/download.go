package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NamanBalaji/bsfetch/internal/config"
	"github.com/NamanBalaji/bsfetch/pkg/basespace"
)

var downloadCmd = &cobra.Command{
	Use:   "download <file-id>...",
	Short: "Download platform files by id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.AccessToken == "" {
			return fmt.Errorf("%w: set accessToken in %s or %s", basespace.ErrMissingToken, config.Path(), config.TokenEnv)
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		client := basespace.NewClient(cfg.APIURL, cfg.APIVersion, cfg.AccessToken, basespace.WithHTTPClient(s.http))

		var failed int
		for _, id := range args {
			if cmd.Context().Err() != nil {
				break
			}

			target, err := s.manager.FileTargetByID(cmd.Context(), client, id)
			if err != nil {
				printError(fmt.Sprintf("%s: %v", id, err))
				failed++
				continue
			}

			if !s.fetch(cmd.Context(), target) {
				failed++
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d downloads did not complete", failed, len(args))
		}

		return nil
	},
}
