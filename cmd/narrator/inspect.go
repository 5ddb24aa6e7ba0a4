package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/unalkalkan/narrator/internal/chapter"
	"github.com/unalkalkan/narrator/pkg/types"
)

var (
	previewChars  int
	chapterNumber int
)

var chaptersCmd = &cobra.Command{
	Use:   "chapters <input>",
	Short: "List the chapters detected in a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conv, err := offlineConverter(appConfig.Conversion)
		if err != nil {
			return err
		}
		chapters, err := conv.ExtractChapters(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(chapters) == 0 {
			fmt.Fprintln(out, "No chapters detected in this document.")
			return nil
		}

		filtered := cmd.Flags().Changed("number")
		var match types.Chapter
		if filtered {
			var ok bool
			if match, ok = chapter.FindByNumber(chapters, chapterNumber); !ok {
				return fmt.Errorf("no chapter numbered %d: %w", chapterNumber, types.ErrNotFound)
			}
		} else {
			fmt.Fprintf(out, "Found %d chapters:\n\n", len(chapters))
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tNo.\tPage\tTitle")
		for i, ch := range chapters {
			if filtered && ch.StartChar != match.StartChar {
				continue
			}
			number := "-"
			if n, ok := chapter.TitleNumber(ch.Title); ok {
				number = fmt.Sprint(n)
			}
			page := "?"
			if ch.StartPage > 0 {
				page = fmt.Sprint(ch.StartPage)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, number, page, ch.Title)
		}
		return tw.Flush()
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <input>",
	Short: "Show the normalized text that would be spoken",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conv, err := offlineConverter(appConfig.Conversion)
		if err != nil {
			return err
		}
		text, err := conv.PreviewText(cmd.Context(), args[0], previewChars)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Processed text preview:")
		fmt.Fprintln(out)
		fmt.Fprintln(out, text)
		return nil
	},
}

func init() {
	chaptersCmd.Flags().IntVar(&chapterNumber, "number", 0, "show only the chapter whose title carries this number (Arabic or Roman)")
	previewCmd.Flags().IntVarP(&previewChars, "chars", "n", 2000, "number of characters to preview")

	rootCmd.AddCommand(chaptersCmd)
	rootCmd.AddCommand(previewCmd)
}
