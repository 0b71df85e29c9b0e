package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	journalLimit int
	purgeOlder   time.Duration
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show recent translation requests recorded in Postgres",
	Long: `Show the newest rows of the translation journal. The journal only keeps
metadata (engine, model, outcome, latency and a SHA-256 of the input);
texts and images are never stored.

Requires DATABASE_URL or POSTGRES_PASSWORD.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return errors.New("journal is disabled: set DATABASE_URL or POSTGRES_PASSWORD")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if purgeOlder > 0 {
			n, err := a.repo.PurgeOlderThan(ctx, purgeOlder)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d rows older than %v\n", n, purgeOlder)
		}

		rows, err := a.repo.Recent(ctx, journalLimit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tKIND\tENGINE\tMODEL\tOK\tERROR\tLATENCY\tINPUT")
		for _, r := range rows {
			hash := r.InputHash
			if len(hash) > 12 {
				hash = hash[:12]
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\t%v\t%s\n",
				r.CreatedAt.Local().Format(time.DateTime), r.Kind, r.Engine, r.Model,
				r.Success, r.ErrorKind, r.Latency, hash)
		}
		return tw.Flush()
	},
}

func init() {
	journalCmd.Flags().IntVar(&journalLimit, "limit", 50, "rows to show")
	journalCmd.Flags().DurationVar(&purgeOlder, "purge-older-than", 0, "delete rows older than this first (e.g. 720h)")
	rootCmd.AddCommand(journalCmd)
}
