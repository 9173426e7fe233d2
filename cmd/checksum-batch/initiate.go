package main

import (
	"github.com/spf13/cobra"

	"github.com/aws-samples/sample-s3-batch-checksum-validation/patterns/initiator"
	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/drivers/dynamodb"
	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/drivers/s3"
	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/drivers/s3batch"
)

var initiateRequestPath string

var initiateCmd = &cobra.Command{
	Use:   "initiate",
	Short: "Submit batch checksum jobs for a list of objects",
	Long: `initiate reads a JSON request naming a bucket and its keys,
writes a CSV manifest, submits one batch checksum job per algorithm,
and records a claim per (object, algorithm) pair in the tracking table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var req initiator.Request
		if err := readRequest(initiateRequestPath, &req); err != nil {
			return err
		}

		objects, err := s3.New(ctx, cfg)
		if err != nil {
			return err
		}
		batch, err := s3batch.New(ctx, cfg)
		if err != nil {
			return err
		}
		tracking, err := dynamodb.New(ctx, cfg)
		if err != nil {
			return err
		}

		init, err := initiator.New(initiator.Config{
			ManifestBucket: cfg.ManifestBucket,
			ClaimTTL:       cfg.ClaimTTL,
		})
		if err != nil {
			return err
		}
		if err := init.BindSlots(objects, batch, tracking); err != nil {
			return err
		}
		init.SetMetrics(obs.Metrics())

		resp, err := init.Process(ctx, &req)
		if err != nil {
			return err
		}
		return printResponse(resp)
	},
}

func init() {
	initiateCmd.Flags().StringVarP(&initiateRequestPath, "request", "r", "-", "JSON request file ('-' for stdin)")
	rootCmd.AddCommand(initiateCmd)
}
