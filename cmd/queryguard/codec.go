package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/queryguard/internal/errors"
	"github.com/vango-dev/queryguard/pkg/querycodec"
)

func decodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <query>",
		Short: "Decode a query string into JSON",
		Long: `Decode a query string into a flat JSON object.

A leading "?" is optional. Repeated keys keep the last value.

Examples:
  queryguard decode 'page=2&q=red+shoes'
  queryguard decode '?sort=price'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), querycodec.Decode(args[0]))
		},
	}
	return cmd
}

func encodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode key=value...",
		Short: "Encode pairs as a canonical query string",
		Long: `Encode key=value pairs as a canonical query string.

Keys are sorted and values are escaped. Repeated keys keep the last value.

Examples:
  queryguard encode q='red shoes' page=2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parsePairs(args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), querycodec.Encode(m))
			return nil
		},
	}
	return cmd
}

func parsePairs(args []string) (querycodec.Mapping, error) {
	m := make(querycodec.Mapping, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, errors.New("Q401").
				WithDetailf("%q is not a key=value pair", arg)
		}
		m[key] = value
	}
	return m, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
