package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/unalkalkan/narrator/internal/provider"
	"github.com/unalkalkan/narrator/pkg/types"
)

var (
	voicesLang     string
	voicesProvider string
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the available voices",
	Long: `List the available voices grouped by language.

Without --provider the built-in Kokoro voice table is shown. With
--provider the voices are requested from that configured provider.

Examples:
  narrator voices
  narrator voices --lang b
  narrator voices --provider kokoro`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if voicesLang != "" {
			if _, ok := provider.LanguageNames[voicesLang]; !ok {
				return fmt.Errorf("unknown language code %q: %w", voicesLang, types.ErrInvalidInput)
			}
		}

		voices := provider.Voices(voicesLang)
		if voicesProvider != "" {
			synth, registry, err := openSynthesizer(false, voicesProvider)
			if err != nil {
				return err
			}
			defer registry.Close()

			if lister, ok := synth.(provider.VoiceLister); ok {
				listed, err := lister.ListVoices(cmd.Context())
				if err != nil {
					return err
				}
				voices = filterLanguage(listed, voicesLang)
			}
		}

		printVoices(cmd, voices)
		return nil
	},
}

func init() {
	voicesCmd.Flags().StringVarP(&voicesLang, "lang", "l", "", "filter by Kokoro language code: a, b, e, f, h, i, j, p or z")
	voicesCmd.Flags().StringVar(&voicesProvider, "provider", "", "ask a configured TTS provider for its voices")

	rootCmd.AddCommand(voicesCmd)
}

func filterLanguage(voices []types.Voice, lang string) []types.Voice {
	if lang == "" {
		return voices
	}
	iso := provider.ISOLanguage(lang)
	var out []types.Voice
	for _, v := range voices {
		for _, l := range v.Languages {
			if l == iso {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

func printVoices(cmd *cobra.Command, voices []types.Voice) {
	out := cmd.OutOrStdout()

	byLang := make(map[string][]types.Voice)
	for _, v := range voices {
		lang := provider.VoiceLanguage(v.ID)
		byLang[lang] = append(byLang[lang], v)
	}
	langs := make([]string, 0, len(byLang))
	for l := range byLang {
		langs = append(langs, l)
	}
	sort.Strings(langs)

	for _, l := range langs {
		name := provider.LanguageNames[l]
		if name == "" {
			name = l
		}
		fmt.Fprintln(out, name)

		group := byLang[l]
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, v := range group {
			fmt.Fprintf(tw, "  %s\t%s\n", v.ID, v.Description)
		}
		_ = tw.Flush()
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "Usage: narrator convert book.pdf -o book.m4b --voice af_heart")
}
