package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"substream/config"
	"substream/internal/diskcache"
	"substream/internal/fetch"
	"substream/internal/subtitle"
	"substream/internal/unpack"
	"substream/models"
	"substream/services/score"
	"substream/utils/releasename"
)

// probe downloads a subtitle URL the way a provider adapter would and
// reports what the pipeline makes of it. Mostly a diagnostic for writing
// adapters against misbehaving sites.
func newProbeCommand(settings *config.Settings) *cobra.Command {
	var againstFlag string
	var langFlag string
	var noCacheFlag bool

	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Fetch a URL, unpack it and report the subtitle files inside",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(),
				time.Duration(settings.Fetch.TimeoutSeconds)*time.Second*2)
			defer cancel()

			cache := diskcache.NewOS(settings.Cache.Directory)
			client := fetch.New(settings.Fetch, cache)

			ttl := time.Duration(settings.Cache.TTLMinutes) * time.Minute
			if noCacheFlag {
				ttl = fetch.NoCache
			}
			resp, err := client.Send(ctx, fetch.Request{
				URL:         args[0],
				CacheRegion: "probe",
				CacheTTL:    ttl,
			})
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Content-Type: %s", resp.ContentType)
			if resp.FromCache {
				fmt.Fprint(out, " (cached)")
			}
			fmt.Fprintln(out)

			payload, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			files := unpack.Extract(payload, resp.Filename, unpack.Options{
				SubtitleOptions: subtitle.Options{
					DefaultEncoding: settings.Subtitles.DefaultEncoding,
					AutoDetect:      settings.Subtitles.AutoDetectEncoding,
				},
			})

			var ident *models.VideoIdent
			if againstFlag != "" {
				ident = identFromFilename(againstFlag, langFlag)
			}

			for _, f := range files {
				if f.Sub == nil {
					fmt.Fprintf(out, "%s  %d bytes  (not a subtitle)\n", f.Name, len(f.Data))
					continue
				}
				fmt.Fprintf(out, "%s  %s/%s  %d cues", f.Name, f.Sub.Format, f.Sub.Encoding, len(f.Sub.Cues))
				if ident != nil {
					m := score.NewMatcher(ident)
					m.MatchRelease(f.Name)
					res := score.ScoreFile(score.NewEvidence(), m, f.Name, len(files), settings.Scoring.HashMatchScore)
					fmt.Fprintf(out, "  score %.0f", res.Score)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&againstFlag, "against", "", "Video filename to score the files against")
	cmd.Flags().StringVar(&langFlag, "lang", "en", "Language for scoring context")
	cmd.Flags().BoolVar(&noCacheFlag, "no-cache", false, "Bypass the response cache")

	return cmd
}

// identFromFilename derives a scoring identity from a bare video filename.
func identFromFilename(name, lang string) *models.VideoIdent {
	ident := &models.VideoIdent{
		Lang:     lang,
		FileName: name,
	}
	if ep := releasename.ParseEpisode(name); ep.Season > 0 {
		ident.MediaType = models.MediaTypeEpisode
		ident.SearchText = ep.Title
		ident.Year = ep.Year
		ident.Season = ep.Season
		if len(ep.Episodes) > 0 {
			ident.Episode = ep.Episodes[0]
		}
	} else {
		mov := releasename.ParseMovie(name)
		ident.MediaType = models.MediaTypeMovie
		ident.SearchText = mov.Title
		ident.Year = mov.Year
	}
	ident.NormalizeLang()
	return ident
}
