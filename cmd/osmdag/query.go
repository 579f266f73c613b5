package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/nasdf/osmdag/core"

	"github.com/spf13/cobra"
)

var (
	queryOrder   string
	exportOutput string
)

var queryCmd = &cobra.Command{
	Use:   "query <minLat> <minLon> <maxLat> <maxLon>",
	Short: "Print every document connected to a bounding box",
	Long: `Print every document connected to a bounding box.

Documents are written as one JSON object per line as they are resolved.

Examples:
  osmdag query 52.4 13.3 52.6 13.5 --order type`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		var coords [4]float64
		for i, arg := range args {
			f, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return fmt.Errorf("invalid coordinate %q: %w", arg, err)
			}
			coords[i] = f
		}
		bbox := core.BBox{MinLat: coords[0], MinLon: coords[1], MaxLat: coords[2], MaxLon: coords[3]}

		var opts []core.Option
		if queryOrder != "" {
			opts = append(opts, core.WithOrder(queryOrder))
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		for doc, err := range db.QueryStream(cmd.Context(), bbox, opts...) {
			if err != nil {
				return err
			}
			if err := enc.Encode(doc); err != nil {
				return err
			}
		}
		return nil
	},
}

var changesCmd = &cobra.Command{
	Use:   "changes <changeset>",
	Short: "Print the ids of documents edited in a changeset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := db.GetChanges(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, ids)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <version>",
	Short: "Write a CAR archive of a version and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		size, err := db.Export(cmd.Context(), args[0], w)
		if err != nil {
			return err
		}
		logger.Info("export complete", "version", args[0], "bytes", size)
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryOrder, "order", "", "result order (type)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "file to write the archive to")

	rootCmd.AddCommand(queryCmd, changesCmd, exportCmd)
}
