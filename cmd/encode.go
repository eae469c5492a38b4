package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/awygle/udptherbone/pipeline"
)

type encodeCmd struct {
	*app
	recordFlags
}

func newEncodeCmd(a *app) *cobra.Command {
	e := &encodeCmd{app: a}

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Print the serial bytes of a request as hex.",
		Args:  cobra.NoArgs,
		RunE:  e.run,
	}

	e.register(cmd)

	return cmd
}

func (e *encodeCmd) run(cmd *cobra.Command, _ []string) error {
	records, err := e.records()
	if err != nil {
		return err
	}

	serial, err := pipeline.MakeBuilder().
		WithConfig(e.cfg).
		EncodeRequest(records...)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(serial))

	return nil
}

func newDecodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decode HEX...",
		Short: "Decode serial bytes sent by a device into responses.",
		Long: "`decode` joins its arguments, ignoring white space, parses " +
			"them as hex, and prints every response found.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serial, err := hex.DecodeString(strings.Join(strings.Fields(
				strings.Join(args, " ")), ""))
			if err != nil {
				return fmt.Errorf("decode hex: %w", err)
			}

			rsps, err := pipeline.MakeBuilder().
				WithConfig(a.cfg).
				DecodeResponses(serial)

			printResponses(cmd.OutOrStdout(), rsps)

			return err
		},
	}
}
