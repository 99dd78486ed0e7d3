package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"studai/internal/captions"
)

func newCaptionsCommand(ctx *commandContext) *cobra.Command {
	var (
		srtPath  string
		assPath  string
		maxWords int
		font     string
		fontSize int
	)

	cmd := &cobra.Command{
		Use:   "captions <words.json|captions.srt>",
		Short: "Build SRT and ASS captions from word timings",
		Long: "Groups a word-timing JSON file into caption cues and writes SRT and ASS tracks.\n" +
			"An existing SRT file is converted to ASS with the configured style.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			style := captions.Style{Font: font, Size: fontSize}
			if cfg := ctx.configValue(); cfg != nil {
				if style.Font == "" {
					style.Font = cfg.Captions.Font
				}
				if style.Size <= 0 {
					style.Size = cfg.Captions.FontSize
				}
				if maxWords <= 0 {
					maxWords = cfg.Captions.MaxWords
				}
			}
			out := cmd.OutOrStdout()

			if strings.EqualFold(filepath.Ext(input), ".srt") {
				target := assPath
				if target == "" {
					target = replaceExt(input, ".ass")
				}
				count, err := captions.ConvertSRTFile(input, target, style)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %d cues to %s\n", count, target)
				return nil
			}

			words, err := readWords(input)
			if err != nil {
				return err
			}
			cues := captions.Segment(words, maxWords)
			if len(cues) == 0 {
				return fmt.Errorf("%s contains no timed words", input)
			}
			if srtPath == "" {
				srtPath = replaceExt(input, ".srt")
			}
			if err := captions.WriteSRTFile(srtPath, cues); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %d cues to %s\n", len(cues), srtPath)
			if assPath != "" {
				if err := captions.WriteASSFile(assPath, cues, style); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %d cues to %s\n", len(cues), assPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&srtPath, "srt", "", "SRT output path (defaults next to the input)")
	cmd.Flags().StringVar(&assPath, "ass", "", "ASS output path")
	cmd.Flags().IntVar(&maxWords, "max-words", 0, "Maximum words per cue (defaults to captions.max_words)")
	cmd.Flags().StringVar(&font, "font", "", "ASS font name (defaults to captions.font)")
	cmd.Flags().IntVar(&fontSize, "font-size", 0, "ASS font size (defaults to captions.font_size)")
	return cmd
}

// readWords accepts either a bare array of words or an object with a
// "words" array, the shape transcription providers return.
func readWords(path string) ([]captions.Word, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read words: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("words file is empty")
	}
	if data[0] == '[' {
		var words []captions.Word
		if err := json.Unmarshal(data, &words); err != nil {
			return nil, fmt.Errorf("decode words: %w", err)
		}
		return words, nil
	}
	var wrapped struct {
		Words []captions.Word `json:"words"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode words: %w", err)
	}
	return wrapped.Words, nil
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
