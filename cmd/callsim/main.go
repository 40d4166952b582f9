package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/dennisdiepolder/callboard/internal/calllog"
	"github.com/dennisdiepolder/callboard/internal/callsim"
	"github.com/dennisdiepolder/callboard/internal/storage"
	"github.com/dennisdiepolder/callboard/internal/timeslot"
	"github.com/dennisdiepolder/callboard/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	logLevel     string
	date         string
	seed         int64
	callsPerHour float64
	agents       string
)

var rootCmd = &cobra.Command{
	Use:   "callsim",
	Short: "Generate synthetic call logs for callboard",
	Long: `callsim produces call-log rows in the same shape the call centre writes them,
either as a CSV workbook for SHEETS_MODE=memory or as items in the DynamoDB call log.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().
			Str("service", "callsim").
			Logger()
	},
}

var fixturesCmd = &cobra.Command{
	Use:   "fixtures",
	Short: "Write a CSV workbook for one day",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		callLogSheet, _ := cmd.Flags().GetString("call-log-sheet")
		counterSheet, _ := cmd.Flags().GetString("counter-sheet")
		filmSheet, _ := cmd.Flags().GetString("film-sheet")

		day, gen, err := setup()
		if err != nil {
			return err
		}

		entries := gen.Day(day)
		wb := callsim.Workbook(entries, callsim.Layout{
			CallLogSheet: callLogSheet,
			CounterSheet: counterSheet,
			FilmSheet:    filmSheet,
			Columns:      calllog.DefaultColumns,
			Agents:       splitAgents(),
		}, timeslot.Default())

		if err := wb.SaveDir(dir); err != nil {
			return err
		}
		log.Info().Str("dir", dir).Int("calls", len(entries)).Str("date", day.Format("2006-01-02")).Msg("fixtures written")
		return nil
	},
}

var dynamoCmd = &cobra.Command{
	Use:   "dynamo",
	Short: "Load one day of calls into the DynamoDB call log, or stream live calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		endpoint, _ := cmd.Flags().GetString("endpoint")
		region, _ := cmd.Flags().GetString("region")
		table, _ := cmd.Flags().GetString("table")
		truncate, _ := cmd.Flags().GetBool("truncate")
		live, _ := cmd.Flags().GetBool("live")
		tz, _ := cmd.Flags().GetString("timezone")

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		store, err := storage.NewDynamoDBStore(ctx, storage.DynamoConfig{
			Mode:         storage.DynamoMode(mode),
			Endpoint:     endpoint,
			Region:       region,
			CallLogTable: table,
		}, calllog.DefaultColumns, log.Logger)
		if err != nil {
			return err
		}

		day, gen, err := setup()
		if err != nil {
			return err
		}

		if live {
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("invalid timezone: %w", err)
			}
			log.Info().Float64("calls_per_hour", callsPerHour).Msg("streaming live calls, ctrl-c to stop")
			gen.Run(ctx, loc, func(ctx context.Context, e types.DynamoCallLog) error {
				_, err := store.PutCallLog(ctx, e)
				return err
			}, log.Logger)
			return nil
		}

		dateKey := day.Format("2006-01-02")
		if truncate {
			n, err := store.TruncateDate(ctx, dateKey)
			if err != nil {
				return err
			}
			log.Info().Str("date", dateKey).Int("deleted", n).Msg("call log truncated")
		}

		entries := gen.Day(day)
		for _, e := range entries {
			if _, err := store.PutCallLog(ctx, e); err != nil {
				return err
			}
		}
		log.Info().Str("date", dateKey).Int("calls", len(entries)).Msg("calls loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&date, "date", "", "Day to generate (YYYY-MM-DD, default today)")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 0, "Random seed (0 = time based)")
	rootCmd.PersistentFlags().Float64Var(&callsPerHour, "calls-per-hour", 12, "Average calls per hour before peak factors")
	rootCmd.PersistentFlags().StringVar(&agents, "agents", "101,102,103,104,105,106,107,108", "Comma separated agent ids")

	fixturesCmd.Flags().String("dir", "fixtures", "Output directory")
	fixturesCmd.Flags().String("call-log-sheet", "สรุป call_AI", "Call log worksheet title")
	fixturesCmd.Flags().String("counter-sheet", "Call Matrix", "Counter grid worksheet title")
	fixturesCmd.Flags().String("film-sheet", "Film data", "Film data worksheet title (empty to skip)")

	dynamoCmd.Flags().String("mode", envOr("DYNAMO_MODE", "local"), "DynamoDB mode (local, aws)")
	dynamoCmd.Flags().String("endpoint", envOr("DYNAMO_ENDPOINT", "http://localhost:8000"), "DynamoDB Local endpoint")
	dynamoCmd.Flags().String("region", envOr("DYNAMO_REGION", "ap-southeast-1"), "AWS region")
	dynamoCmd.Flags().String("table", envOr("DYNAMO_CALL_LOG_TABLE", "callboard-call-log"), "Call log table")
	dynamoCmd.Flags().Bool("truncate", false, "Delete the day's existing calls first")
	dynamoCmd.Flags().Bool("live", false, "Stream calls stamped with the current time until interrupted")
	dynamoCmd.Flags().String("timezone", envOr("TIMEZONE", "Asia/Bangkok"), "Timezone for live timestamps")

	rootCmd.AddCommand(fixturesCmd, dynamoCmd)
}

// setup resolves the shared flags into a target day and a generator
func setup() (time.Time, *callsim.Generator, error) {
	day := time.Now()
	if date != "" {
		var err error
		day, err = time.Parse("2006-01-02", date)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("invalid --date %q: %w", date, err)
		}
	}

	cfg := callsim.DefaultConfig()
	cfg.CallsPerHour = callsPerHour
	if seed != 0 {
		cfg.Seed = seed
	}
	cfg.Agents = cfg.Agents[:0]
	for _, a := range splitAgents() {
		cfg.Agents = append(cfg.Agents, callsim.AgentWeight{ID: a, Weight: 1})
	}
	return day, callsim.NewGenerator(cfg), nil
}

func splitAgents() []string {
	var out []string
	for _, a := range strings.Split(agents, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
