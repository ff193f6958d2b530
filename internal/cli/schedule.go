package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"entrate/internal/core"
	"entrate/internal/schedule"
)

// LoadScheduleFile reads a ScheduleConfig from a .toml or .json file.
func LoadScheduleFile(path string) (core.ScheduleConfig, error) {
	var cfg core.ScheduleConfig

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported schedule file %q: use .toml or .json", path)
	}

	cfg.Frequency = core.Frequency(strings.ToUpper(string(cfg.Frequency)))
	if !cfg.Frequency.Valid() {
		return cfg, fmt.Errorf("%s: %w %q", path, core.ErrInvalidFrequency, cfg.Frequency)
	}
	return cfg, nil
}

type scheduleFlags struct {
	at       string
	tz       string
	days     int
	asJSON   bool
	atFlag   string
	atUsage  string
	withDays bool
}

func (f *scheduleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.at, f.atFlag, "", f.atUsage)
	cmd.Flags().StringVar(&f.tz, "tz", "Local", "IANA time zone schedules are evaluated in")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print JSON instead of a table")
	if f.withDays {
		cmd.Flags().IntVar(&f.days, "days", 30, "window size in days")
	}
}

// reference resolves the --from/--to flag; empty means now.
func (f *scheduleFlags) reference() (time.Time, error) {
	loc, err := time.LoadLocation(f.tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --tz: %w", err)
	}
	if f.at == "" {
		return time.Now().In(loc), nil
	}
	if t, err := time.Parse(time.RFC3339, f.at); err == nil {
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, f.at, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: use YYYY-MM-DD or RFC 3339", f.atFlag, f.at)
	}
	return t, nil
}

func newNextCommand() *cobra.Command {
	flags := &scheduleFlags{atFlag: "from", atUsage: "reference date (default now)"}
	cmd := &cobra.Command{
		Use:   "next SCHEDULE_FILE",
		Short: "Print the first occurrence strictly after a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadScheduleFile(args[0])
			if err != nil {
				return err
			}
			from, err := flags.reference()
			if err != nil {
				return err
			}

			next, ok := schedule.NextOccurrence(cfg, from)
			var out []core.Occurrence
			if ok {
				out = []core.Occurrence{{Date: next, Amount: schedule.AmountOn(cfg, next)}}
			}
			return printOccurrences(cmd.OutOrStdout(), out, flags.asJSON)
		},
	}
	flags.register(cmd)
	return cmd
}

func newUpcomingCommand() *cobra.Command {
	flags := &scheduleFlags{atFlag: "from", atUsage: "window start, exclusive (default now)", withDays: true}
	cmd := &cobra.Command{
		Use:   "upcoming SCHEDULE_FILE",
		Short: "List occurrences in the days after a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadScheduleFile(args[0])
			if err != nil {
				return err
			}
			from, err := flags.reference()
			if err != nil {
				return err
			}
			if flags.days < 1 {
				return fmt.Errorf("--days must be positive")
			}

			out := []core.Occurrence{}
			for occ := range schedule.Upcoming(cfg, from, flags.days) {
				out = append(out, occ)
			}
			return printOccurrences(cmd.OutOrStdout(), out, flags.asJSON)
		},
	}
	flags.register(cmd)
	return cmd
}

func newRecentCommand() *cobra.Command {
	flags := &scheduleFlags{atFlag: "to", atUsage: "window end (default now)", withDays: true}
	cmd := &cobra.Command{
		Use:   "recent SCHEDULE_FILE",
		Short: "List occurrences in the days before a date, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadScheduleFile(args[0])
			if err != nil {
				return err
			}
			to, err := flags.reference()
			if err != nil {
				return err
			}
			if flags.days < 1 {
				return fmt.Errorf("--days must be positive")
			}
			return printOccurrences(cmd.OutOrStdout(), schedule.Recent(cfg, to, flags.days), flags.asJSON)
		},
	}
	flags.register(cmd)
	return cmd
}

func printOccurrences(w io.Writer, occs []core.Occurrence, asJSON bool) error {
	if asJSON {
		if occs == nil {
			occs = []core.Occurrence{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(occs)
	}

	if len(occs) == 0 {
		_, err := fmt.Fprintln(w, "No occurrences.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tWEEKDAY\tTIME\tAMOUNT")
	for _, occ := range occs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			occ.Date.Format(time.DateOnly),
			occ.Date.Weekday().String()[:3],
			occ.Date.Format("15:04"),
			core.MoneyFromAmount(occ.Amount).String())
	}
	return tw.Flush()
}
