/*-------------------------------------------------------------------------
 *
 * mcp-sqlify Text-to-SQL Agent
 *
 * Copyright (c) 2025, the mcp-sqlify authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mcp-sqlify/internal/wikisql"
)

var (
	datasetInput  string
	datasetOutput string
	datasetLimit  int
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Work with WikiSQL dataset splits",
}

var datasetConvertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Materialize a WikiSQL JSONL split into a SQLite database",
	RunE:  runDatasetConvert,
}

func init() {
	datasetConvertCmd.Flags().StringVar(&datasetInput, "input", "", "Path to the JSONL split (required)")
	datasetConvertCmd.Flags().StringVar(&datasetOutput, "output", "", "Path to the SQLite database to create (required)")
	datasetConvertCmd.Flags().IntVar(&datasetLimit, "limit", 0, "Max examples to convert, 0 = all")
	_ = datasetConvertCmd.MarkFlagRequired("input")
	_ = datasetConvertCmd.MarkFlagRequired("output")

	datasetCmd.AddCommand(datasetConvertCmd)
}

func runDatasetConvert(cmd *cobra.Command, _ []string) error {
	examples, err := wikisql.ReadSplit(datasetInput, datasetLimit)
	if err != nil {
		return err
	}

	conv, err := wikisql.OpenConverter(datasetOutput)
	if err != nil {
		return err
	}
	defer conv.Close()

	if err := conv.ConvertExamples(cmd.Context(), examples); err != nil {
		return err
	}

	fmt.Printf("Converted %d examples into %s\n", len(examples), datasetOutput)
	return nil
}
