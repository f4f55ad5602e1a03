package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jwebster45206/story-coach/pkg/brief"
	"github.com/jwebster45206/story-coach/pkg/prompts"
	"github.com/jwebster45206/story-coach/pkg/textfilter"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// errInvalid marks a validation failure that has already been reported.
var errInvalid = errors.New("validation failed")

func main() {
	cmd := newRootCommand(afero.NewOsFs(), os.Stdin, os.Stdout)
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errInvalid) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCommand(fs afero.Fs, in io.Reader, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "validate",
		Short:         "Check story-coach inputs offline",
		Long:          "Check a rules document, a brief file, or a text sample against the filters the coach applies.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)

	root.AddCommand(
		newRulesCommand(fs),
		newBriefCommand(fs),
		newTextCommand(),
	)
	return root
}

func newRulesCommand(fs afero.Fs) *cobra.Command {
	return &cobra.Command{
		Use:   "rules [path]",
		Short: "Check that a rules document loads",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "rules.txt"
			if len(args) == 1 {
				path = args[0]
			}

			rules, err := prompts.LoadRules(fs, path)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "✗ %s: %v\n", path, err)
				fmt.Fprintf(cmd.OutOrStdout(), "  The API would fall back to: %q\n", prompts.DefaultRules)
				return errInvalid
			}

			lines := strings.Count(rules, "\n") + 1
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d lines, %d characters\n", path, lines, len(rules))
			return nil
		},
	}
}

func newBriefCommand(fs afero.Fs) *cobra.Command {
	var showContext bool

	cmd := &cobra.Command{
		Use:   "brief <file.yaml>",
		Short: "Validate a brief written as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := afero.ReadFile(fs, args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			var b brief.Brief
			if err := yaml.Unmarshal(data, &b); err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}
			b = b.Normalize()

			out := cmd.OutOrStdout()
			if err := b.Validate(); err != nil {
				var verr *brief.ValidationError
				if errors.As(err, &verr) {
					for _, p := range verr.Problems {
						fmt.Fprintf(out, "✗ %s\n", p)
					}
					return errInvalid
				}
				return err
			}

			fmt.Fprintln(out, "✓ "+prompts.BriefSavedNotice)
			if showContext {
				fmt.Fprintln(out)
				fmt.Fprintln(out, brief.BuildContext(b))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showContext, "context", false, "Print the context message sent to the coach")
	return cmd
}

func newTextCommand() *cobra.Command {
	var level string
	var stdinFlag bool

	cmd := &cobra.Command{
		Use:   "text [words...]",
		Short: "Run the gibberish and profanity filters on a text sample",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if stdinFlag {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(data)
			}

			out := cmd.OutOrStdout()
			filter := textfilter.NewProfanityFilter()

			gibberish := textfilter.IsGibberish(text)
			fmt.Fprintf(out, "gibberish: %t\n", gibberish)
			fmt.Fprintf(out, "profanity: %t\n", filter.ContainsProfanity(text))
			if level != "" {
				applies := textfilter.ShouldFilterForLevel(level)
				fmt.Fprintf(out, "filtered for %q: %t\n", level, applies)
				if applies {
					fmt.Fprintf(out, "output: %s\n", filter.FilterText(text))
				}
			}

			if gibberish {
				return errInvalid
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&level, "level", "", "Educational level used to decide whether profanity is filtered")
	cmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read the sample from stdin")
	return cmd
}
