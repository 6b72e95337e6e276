package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/gradeproxy/internal/extract"
	"github.com/abhisek/gradeproxy/internal/grading"
	"github.com/abhisek/gradeproxy/internal/shape"
	"github.com/abhisek/gradeproxy/internal/ui/theme"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract JSON from a model reply read from a file or stdin",
	Long: "Runs the extraction cascade over a saved model reply and prints the value found.\n" +
		"With --contract the value is also validated against a reply contract.\n\n" +
		"Contracts: " + strings.Join(grading.ContractNames(), ", "),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd, args)
		if err != nil {
			return err
		}

		name, _ := cmd.Flags().GetString("contract")
		count, _ := cmd.Flags().GetInt("count")
		lenient, _ := cmd.Flags().GetBool("lenient")

		var checker *shape.Checker
		if lenient {
			checker = shape.NewChecker(extract.NewLenient())
		} else {
			checker = shape.NewChecker(nil)
		}

		out := cmd.OutOrStdout()
		if name == "" {
			v, strategy, ok := checker.Extract(raw)
			if !ok {
				fmt.Fprintln(out, theme.Field("Result", theme.Incorrect.Render("no parseable structure")))
				return errNoStructure
			}
			fmt.Fprintln(out, theme.Field("Strategy", strategy))
			fmt.Fprintln(out, theme.Field("Kind", v.Kind().String()))
			return printValue(out, v)
		}

		c, ok := grading.Contract(name, count)
		if !ok {
			return fmt.Errorf("unknown contract %q (known: %s)", name, strings.Join(grading.ContractNames(), ", "))
		}

		res := checker.Check(raw, c)
		fmt.Fprintln(out, theme.Field("Contract", c.String()))
		fmt.Fprintln(out, theme.Field("Strategy", orDash(res.Strategy)))
		if !res.Valid() {
			fmt.Fprintln(out, theme.Field("Result", theme.Incorrect.Render(res.Reason())))
			return errContractFailed
		}
		fmt.Fprintln(out, theme.Field("Result", theme.Correct.Render("valid")))
		return printValue(out, res.Value)
	},
}

var (
	errNoStructure    = errors.New("no JSON found")
	errContractFailed = errors.New("reply does not satisfy contract")
)

func init() {
	extractCmd.Flags().StringP("contract", "c", "", "Validate against the named reply contract")
	extractCmd.Flags().IntP("count", "n", 1, "Expected element count for recent-test-grading")
	extractCmd.Flags().Bool("lenient", false, "Add the jsonrepair strategy to the cascade")
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	var (
		b   []byte
		err error
	)
	if len(args) == 0 || args[0] == "-" {
		b, err = io.ReadAll(cmd.InOrStdin())
	} else {
		b, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(b), nil
}

func printValue(w io.Writer, v extract.Value) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	fmt.Fprintln(w, string(b))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
