package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caffeineduck/rise/share"
	"github.com/spf13/cobra"
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Encode code into a share link, or decode one",
}

var shareEncodeCmd = &cobra.Command{
	Use:   "encode [file]",
	Short: "Print a share link for a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, _ := cmd.Flags().GetString("base-url")

		var data []byte
		var err error
		if len(args) > 0 {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return err
		}

		link, err := share.Encode(string(data), base)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), link)
		return nil
	},
}

var shareDecodeCmd = &cobra.Command{
	Use:   "decode <url>",
	Short: "Print the code carried by a share link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, ok, err := share.Decode(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("link has no code parameter")
		}
		io.WriteString(cmd.OutOrStdout(), code)
		return nil
	},
}

func init() {
	shareEncodeCmd.Flags().String("base-url", "https://rise.local/", "Page URL the link points at")
	shareCmd.AddCommand(shareEncodeCmd, shareDecodeCmd)
	rootCmd.AddCommand(shareCmd)
}
