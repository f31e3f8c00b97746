package main

import (
	"fmt"
	"strings"

	"simple_calculator/internal/calculator"

	"github.com/spf13/cobra"
)

func newPressCmd() *cobra.Command {
	var trace bool

	cmd := &cobra.Command{
		Use:   "press KEY...",
		Short: "Press keys on a local calculator and print the display",
		Long: "Press keys on a fresh local calculator, e.g.\n" +
			"  simple_calculator press 7 + 3 =\n" +
			"Keys: 0-9 . AC +/- % ÷ × - + = (aliases: / * x C ±).",
		Example: "  simple_calculator press 1 2 x 1 2 =",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := calculator.ParseKeys(splitArgs(args))
			if err != nil {
				return err
			}
			e := calculator.New()
			out := cmd.OutOrStdout()
			for _, k := range keys {
				e.Press(k)
				if trace {
					fmt.Fprintf(out, "%-3s %s\n", k, e.Display())
				}
			}
			if !trace {
				fmt.Fprintln(out, e.Display())
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&trace, "trace", "t", false, "print the display after every key")
	return cmd
}

// splitArgs lets a whole sequence come as one quoted argument: "7 + 3 =".
func splitArgs(args []string) []string {
	var keys []string
	for _, a := range args {
		keys = append(keys, strings.Fields(a)...)
	}
	return keys
}
