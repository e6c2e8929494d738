package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NamanBalaji/bsfetch/internal/download"
	"github.com/NamanBalaji/bsfetch/internal/s3source"
)

var (
	s3Profile string
	s3Region  string
)

var s3Cmd = &cobra.Command{
	Use:   "s3 <s3://bucket/key>...",
	Short: "Download objects straight from S3 through presigned URLs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := s3source.Options{}
		if cfg.S3 != nil {
			opts = s3source.Options{
				Profile:       cfg.S3.Profile,
				Region:        cfg.S3.Region,
				PresignExpiry: cfg.S3.PresignExpiry,
			}
		}

		if cmd.Flags().Changed("profile") {
			opts.Profile = s3Profile
		}

		if cmd.Flags().Changed("region") {
			opts.Region = s3Region
		}

		src, err := s3source.New(cmd.Context(), opts)
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		var failed int
		for _, uri := range args {
			if cmd.Context().Err() != nil {
				break
			}

			if !fetchObject(cmd, s, src, uri) {
				failed++
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d downloads did not complete", failed, len(args))
		}

		return nil
	},
}

func fetchObject(cmd *cobra.Command, s *session, src *s3source.Source, uri string) bool {
	bucket, key, err := s3source.ParseURI(uri)
	if err != nil {
		printError(err.Error())
		return false
	}

	obj, err := src.Stat(cmd.Context(), bucket, key)
	if err != nil {
		printError(fmt.Sprintf("%s: %v", uri, err))
		return false
	}

	if !obj.AcceptRanges {
		printWarning(fmt.Sprintf("%s: object did not advertise byte ranges", uri))
	}

	return s.fetch(cmd.Context(), download.Target{
		FileID:    uri,
		Name:      obj.Name(),
		Source:    download.SourceS3,
		Size:      obj.Size,
		Refresher: src.Refresher(bucket, key),
	})
}

func init() {
	s3Cmd.Flags().StringVar(&s3Profile, "profile", "", "AWS shared config profile")
	s3Cmd.Flags().StringVar(&s3Region, "region", "", "AWS region")
}
