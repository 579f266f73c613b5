package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/nasdf/osmdag/core"
	"github.com/nasdf/osmdag/document"

	"github.com/spf13/cobra"
)

var (
	putLinks    []string
	delVersions []string
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print the current heads of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		heads, err := db.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		docs := make([]document.Document, 0, len(heads))
		for _, doc := range heads {
			docs = append(docs, doc)
		}
		slices.SortFunc(docs, func(a, b document.Document) int {
			return strings.Compare(a.Version, b.Version)
		})
		return printJSON(cmd, docs)
	},
}

var headsCmd = &cobra.Command{
	Use:   "heads <id>",
	Short: "Print the head versions of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		heads, err := db.Heads(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, heads)
	},
}

var createCmd = &cobra.Command{
	Use:   "create <value>",
	Short: "Create a document with a new id",
	Long: `Create a document with a new id.

The value is a JSON object, or - to read it from stdin.

Examples:
  osmdag create '{"lat": 52.5, "lon": 13.4, "tags": {"amenity": "cafe"}}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := readValue(cmd, args[0])
		if err != nil {
			return err
		}
		id, n, err := db.Create(cmd.Context(), value)
		if err != nil {
			return err
		}
		return printJSON(cmd, document.Document{ID: id, Version: n.Version, Value: value})
	},
}

var putCmd = &cobra.Command{
	Use:   "put <id> <value>",
	Short: "Write a new version of a document",
	Long: `Write a new version of a document.

The new version replaces all current heads unless --link is given.

Examples:
  osmdag put w1 '{"type": "way", "nodes": ["n1", "n2"]}'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := readValue(cmd, args[1])
		if err != nil {
			return err
		}
		n, err := db.Put(cmd.Context(), args[0], value, core.WithLinks(putLinks...))
		if err != nil {
			return err
		}
		return printJSON(cmd, document.Document{ID: args[0], Version: n.Version, Value: value})
	},
}

var delCmd = &cobra.Command{
	Use:   "del <id>",
	Short: "Delete a document",
	Long: `Delete a document.

All current heads are deleted unless --version is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := db.Del(cmd.Context(), args[0], core.WithKeys(delVersions...))
		if err != nil {
			return err
		}
		return printJSON(cmd, document.Document{ID: args[0], Version: n.Version, Deleted: true})
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Apply a JSON array of rows atomically",
	Long: `Apply a JSON array of rows atomically.

Each row has a type of put or del, an optional key, a value for puts,
and optional links. Use - to read rows from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readArg(cmd, args[0], true)
		if err != nil {
			return err
		}
		var rows []document.Row
		if err := json.Unmarshal(data, &rows); err != nil {
			return fmt.Errorf("parse rows: %w", err)
		}
		nodes, err := db.Batch(cmd.Context(), rows)
		if err != nil {
			return err
		}
		out := make([]document.Document, len(nodes))
		for i, n := range nodes {
			out[i] = document.Document{
				ID:      rows[i].Key,
				Version: n.Version,
				Deleted: rows[i].Type == document.RowDel,
			}
		}
		return printJSON(cmd, out)
	},
}

func init() {
	putCmd.Flags().StringSliceVarP(&putLinks, "link", "l", nil, "versions replaced by the new version")
	delCmd.Flags().StringSliceVar(&delVersions, "version", nil, "head versions to delete")

	rootCmd.AddCommand(getCmd, headsCmd, createCmd, putCmd, delCmd, batchCmd)
}

func readValue(cmd *cobra.Command, arg string) (*document.Value, error) {
	data, err := readArg(cmd, arg, false)
	if err != nil {
		return nil, err
	}
	var value document.Value
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("parse value: %w", err)
	}
	return &value, nil
}

// readArg returns the contents of stdin for -, the named file when file is set, or the arg itself.
func readArg(cmd *cobra.Command, arg string, file bool) ([]byte, error) {
	switch {
	case arg == "-":
		return io.ReadAll(cmd.InOrStdin())
	case file:
		return os.ReadFile(arg)
	default:
		return []byte(arg), nil
	}
}
