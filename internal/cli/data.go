package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newListCmd(opts *options) *cobra.Command {
	var public bool
	cmd := &cobra.Command{
		Use:   "list <table>",
		Short: "List records in a collection, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if public {
				c, _ := opts.connect(cmd)
				recs, err := c.PublicList(contextOf(cmd), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), recs)
			}

			c, err := opts.authenticated(cmd)
			if err != nil {
				return err
			}
			recs, err := c.List(contextOf(cmd), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), recs)
		},
	}
	cmd.Flags().BoolVar(&public, "public", false, "read through the public API without logging in")
	return cmd
}

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <table> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.authenticated(cmd)
			if err != nil {
				return err
			}
			rec, err := c.Get(contextOf(cmd), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func newCreateCmd(opts *options) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "create <table>",
		Short: "Create a record from a JSON object",
		Example: `  portfolioctl create projects --data '{"title":"My project"}'
  portfolioctl create books --data @book.json
  cat video.json | portfolioctl create videos --data -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd.InOrStdin(), data)
			if err != nil {
				return err
			}
			c, err := opts.authenticated(cmd)
			if err != nil {
				return err
			}
			rec, err := c.Create(contextOf(cmd), args[0], payload)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "JSON object, @file, or - for stdin")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newUpdateCmd(opts *options) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "update <table> <id>",
		Short: "Merge fields into an existing record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd.InOrStdin(), data)
			if err != nil {
				return err
			}
			c, err := opts.authenticated(cmd)
			if err != nil {
				return err
			}
			rec, err := c.Update(contextOf(cmd), args[0], args[1], payload)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "JSON object, @file, or - for stdin")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table> <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.authenticated(cmd)
			if err != nil {
				return err
			}
			if err := c.Delete(contextOf(cmd), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s/%s.\n", args[0], args[1])
			return nil
		},
	}
}

func readPayload(stdin io.Reader, arg string) (map[string]any, error) {
	var raw []byte
	switch {
	case arg == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		raw = b
	case len(arg) > 1 && arg[0] == '@':
		b, err := os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", arg[1:], err)
		}
		raw = b
	default:
		raw = []byte(arg)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("data must be a JSON object: %w", err)
	}
	if payload == nil {
		return nil, fmt.Errorf("data must be a JSON object")
	}
	return payload, nil
}
