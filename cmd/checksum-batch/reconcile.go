package main

import (
	"github.com/spf13/cobra"

	"github.com/aws-samples/sample-s3-batch-checksum-validation/patterns/reconciler"
	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/drivers/dynamodb"
	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/drivers/s3"
)

var reconcileEventPath string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Fold batch job completion reports into the tracking table",
	Long: `reconcile reads an object-created notification event, parses
each referenced report, and updates the matching claim records with the
computed checksums or failure details.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var event reconciler.Event
		if err := readRequest(reconcileEventPath, &event); err != nil {
			return err
		}

		objects, err := s3.New(ctx, cfg)
		if err != nil {
			return err
		}
		tracking, err := dynamodb.New(ctx, cfg)
		if err != nil {
			return err
		}

		rec := reconciler.New()
		if err := rec.BindSlots(objects, tracking); err != nil {
			return err
		}
		rec.SetMetrics(obs.Metrics())

		return printResponse(rec.ProcessEvent(ctx, &event))
	},
}

func init() {
	reconcileCmd.Flags().StringVarP(&reconcileEventPath, "event", "e", "-", "JSON event file ('-' for stdin)")
	rootCmd.AddCommand(reconcileCmd)
}
