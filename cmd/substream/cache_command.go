package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"substream/config"
	"substream/internal/diskcache"
)

func newCacheCommand(settings *config.Settings) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the on-disk response cache",
	}
	cacheCmd.AddCommand(newCachePurgeCommand(settings))
	return cacheCmd
}

func newCachePurgeCommand(settings *config.Settings) *cobra.Command {
	var allFlag bool
	var olderThanFlag time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			olderThan := olderThanFlag
			if olderThan == 0 {
				olderThan = time.Duration(settings.Cache.TTLMinutes) * time.Minute
			}
			if allFlag {
				olderThan = 0
			}

			cache := diskcache.NewOS(settings.Cache.Directory)
			removed, err := cache.Purge(olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entries\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&allFlag, "all", false, "Remove every entry regardless of age")
	cmd.Flags().DurationVar(&olderThanFlag, "older-than", 0, "Remove entries older than this (default: configured TTL)")

	return cmd
}
