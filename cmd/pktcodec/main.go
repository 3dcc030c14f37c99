// Copyright (c) 2024 Neomantra Corp

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

///////////////////////////////////////////////////////////////////////////////

var (
	schemaFile string // path to the JSON schema declaration
	useZstd    bool   // force zstd framing, irrespective of filename suffix
)

func requireNoError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	}
}

///////////////////////////////////////////////////////////////////////////////

func main() {
	cobra.OnInitialize()

	rootCmd.PersistentFlags().StringVarP(&schemaFile, "schema", "s", "", "Path to the JSON schema declaration")
	rootCmd.MarkPersistentFlagRequired("schema")

	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().BoolVarP(&useZstd, "zstd", "z", false, "zstd-compress the output")

	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVarP(&useZstd, "zstd", "z", false, "input is zstd-compressed")

	rootCmd.AddCommand(calcsizeCmd)

	requireNoError(rootCmd.Execute())
}

///////////////////////////////////////////////////////////////////////////////

var rootCmd = &cobra.Command{
	Use:   "pktcodec",
	Short: "pktcodec encodes and decodes records against a declared pktschema",
	Long:  "pktcodec encodes and decodes records against a declared pktschema",
}

///////////////////////////////////////////////////////////////////////////////

var encodeCmd = &cobra.Command{
	Use:   "encode file",
	Short: "Reads a JSON record from stdin, writes its encoded bytes to file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		requireNoError(runEncode(schemaFile, args[0], useZstd))
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode file",
	Short: "Decodes every record in file, writing one JSON object per line to stdout",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		requireNoError(runDecode(schemaFile, args[0], useZstd))
	},
}

var calcsizeCmd = &cobra.Command{
	Use:   "calcsize",
	Short: "Reads a JSON record from stdin, prints its calculated wire size",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		requireNoError(runCalcsize(schemaFile))
	},
}
