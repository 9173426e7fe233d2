package main

import (
	"github.com/spf13/cobra"

	"github.com/aws-samples/sample-s3-batch-checksum-validation/patterns/tagger"
	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/drivers/s3"
)

var tagRequestPath string

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Attach verified checksums to objects as tags",
	Long: `tag reads a JSON request listing verified checksums and merges
a checksum tag pair per entry into each object's existing tag set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var req tagger.Request
		if err := readRequest(tagRequestPath, &req); err != nil {
			return err
		}

		objects, err := s3.New(ctx, cfg)
		if err != nil {
			return err
		}

		tg, err := tagger.New(tagger.Config{Workers: cfg.Workers})
		if err != nil {
			return err
		}
		if err := tg.BindSlots(objects); err != nil {
			return err
		}
		tg.SetMetrics(obs.Metrics())

		resp, err := tg.Process(ctx, &req)
		if err != nil {
			return err
		}
		return printResponse(resp)
	},
}

func init() {
	tagCmd.Flags().StringVarP(&tagRequestPath, "request", "r", "-", "JSON request file ('-' for stdin)")
	rootCmd.AddCommand(tagCmd)
}
