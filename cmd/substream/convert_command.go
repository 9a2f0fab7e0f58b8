package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"substream/config"
	"substream/internal/subtitle"
)

func newConvertCommand(settings *config.Settings) *cobra.Command {
	var outFlag string
	var fpsFromFlag, fpsToFlag float64
	var adjustFlag bool

	cmd := &cobra.Command{
		Use:   "convert <subtitle-file>",
		Short: "Detect a subtitle's format and convert it to a supported one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			sub, err := subtitle.Load(data, subtitle.Options{
				DefaultEncoding: settings.Subtitles.DefaultEncoding,
				AutoDetect:      settings.Subtitles.AutoDetectEncoding,
			}, fpsFromFlag)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Detected: %s (%s), %d cues\n",
				sub.Format, sub.Encoding, len(sub.Cues))

			if fpsFromFlag > 0 && fpsToFlag > 0 {
				subtitle.ChangeFrameRate(sub, fpsFromFlag, fpsToFlag)
				fmt.Fprintf(cmd.OutOrStdout(), "Rebased timing: %.3f -> %.3f fps\n", fpsFromFlag, fpsToFlag)
			}

			var pp *subtitle.PostProcess
			if adjustFlag || settings.Subtitles.AdjustDuration {
				pp = &subtitle.PostProcess{
					AdjustDuration: true,
					ExtendOnly:     settings.Subtitles.ExtendDurationOnly,
					CPS:            settings.Subtitles.MaxCharsPerSecond,
				}
			}
			out, format := subtitle.ToSupportedFormat(sub, pp)

			target := outFlag
			if target == "" {
				target = replaceExt(args[0], format.Extension())
			}
			if err := os.WriteFile(target, out, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", target, format)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFlag, "out", "o", "", "Output path (default: input with new extension)")
	cmd.Flags().Float64Var(&fpsFromFlag, "fps-from", 0, "Source frame rate (also seeds frame-based formats)")
	cmd.Flags().Float64Var(&fpsToFlag, "fps-to", 0, "Target frame rate for rebasing")
	cmd.Flags().BoolVar(&adjustFlag, "adjust-duration", false, "Recompute cue durations from reading speed")

	return cmd
}

func replaceExt(path, ext string) string {
	if i := strings.LastIndex(path, "."); i > 0 {
		path = path[:i]
	}
	return path + "." + ext
}
