// Command dbcrossbar is a thin cobra shell over the copy planner
// (pkg/planner) and the driver registry (pkg/drivers/*): it parses
// the CLI surface (cp, count, schema conv,
// config{add,rm}, features, license) and translates flags into
// planner.Options and driver.SharedArgs, but owns none of the copy
// logic itself: root command, subcommands, flag wiring, and a
// godotenv .env load before flag parsing.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcstream"
	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/open"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/redshift"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/snowflake"
	"github.com/dbcrossbar/dbcrossbar/pkg/logger"
	"github.com/dbcrossbar/dbcrossbar/pkg/observability"
	"github.com/dbcrossbar/dbcrossbar/pkg/planner"
)

var version = "0.1.0"

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "dbcrossbar",
		Short: "Move large tabular datasets between heterogeneous data stores",
		Long: `dbcrossbar copies tables between databases, cloud storage, and local
files using a portable schema representation, without transforming
the data along the way.`,
	}

	root.AddCommand(
		newVersionCmd(),
		newFeaturesCmd(),
		newLicenseCmd(),
		newCPCmd(),
		newCountCmd(),
		newSchemaCmd(),
		newConfigCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(dbcerrors.ExitCode(err))
	}
}

func stderrf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dbcrossbar v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newLicenseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "license",
		Short: "Print licensing information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("dbcrossbar is distributed under the terms of the MIT license.")
		},
	}
}

// initLogger builds a zap logger from --log-level.
func initLogger(level string) *zap.Logger {
	if err := logger.Init(logger.Config{Level: level, Encoding: "console"}); err != nil {
		stderrf("warning: could not initialize logger: %v", err)
	}
	return logger.Get()
}

// parseKeyValueArgs parses repeated --from-arg/--to-arg flags of the
// form "key=value" or "key[sub]=value" into a flat map; the
// "[sub]" suffix is kept as part of the key text since drivers own
// their own args namespace and the planner only checks presence.
func parseKeyValueArgs(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		i := strings.IndexByte(kv, '=')
		if i < 0 {
			return nil, dbcerrors.Newf(dbcerrors.KindParse, "malformed argument %q, expected key=value", kv)
		}
		key, value := kv[:i], kv[i+1:]
		if _, dup := out[key]; dup {
			return nil, dbcerrors.Newf(dbcerrors.KindParse, "duplicate argument key %q", key)
		}
		out[key] = value
	}
	return out, nil
}

// parseIfExists parses the --if-exists flag:
// "error"|"append"|"overwrite"|"upsert-on:col1,col2".
func parseIfExists(raw string) (driver.IfExists, error) {
	if raw == "" || raw == "error" {
		return driver.IfExists{Kind: driver.IfExistsError}, nil
	}
	if raw == "append" {
		return driver.IfExists{Kind: driver.IfExistsAppend}, nil
	}
	if raw == "overwrite" {
		return driver.IfExists{Kind: driver.IfExistsOverwrite}, nil
	}
	if rest, ok := strings.CutPrefix(raw, "upsert-on:"); ok {
		keys := strings.Split(rest, ",")
		if len(keys) == 0 || keys[0] == "" {
			return driver.IfExists{}, dbcerrors.New(dbcerrors.KindParse, "upsert-on: needs at least one column name")
		}
		return driver.IfExists{Kind: driver.IfExistsUpsertOn, Keys: keys}, nil
	}
	return driver.IfExists{}, dbcerrors.Newf(dbcerrors.KindParse, "unrecognized --if-exists value %q", raw)
}

func newCPCmd() *cobra.Command {
	var (
		schemaFile        string
		ifExistsFlag      string
		temporaries       []string
		fromArgs, toArgs  []string
		whereClause       string
		streamSize        int64
		maxStreams        int
		displayOutputLocs bool
		enableUnstable    bool
		awsRegion         string
		redshiftStagingS3 string
		redshiftIAMRole   string
		snowflakeStage    string
		logLevel          string
		enableTracing     bool
	)

	cmd := &cobra.Command{
		Use:   "cp SOURCE-LOCATOR DEST-LOCATOR",
		Short: "Copy a table from SOURCE-LOCATOR to DEST-LOCATOR",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := initLogger(logLevel)
			defer log.Sync()

			from, err := parseKeyValueArgs(fromArgs)
			if err != nil {
				return err
			}
			to, err := parseKeyValueArgs(toArgs)
			if err != nil {
				return err
			}
			ifExists, err := parseIfExists(ifExistsFlag)
			if err != nil {
				return err
			}

			openArgs := open.Args{
				AWSRegion:       awsRegion,
				EnableUnstable:  enableUnstable,
				RedshiftStaging: redshift.StagingArgs{S3Prefix: redshiftStagingS3, IAMRole: redshiftIAMRole},
				SnowflakeStage:  snowflake.StageArgs{Stage: snowflakeStage},
			}

			ctx := context.Background()
			if enableTracing {
				if err := observability.Initialize(observability.DefaultConfig()); err != nil {
					return dbcerrors.Wrap(err, dbcerrors.KindInternal, "initializing tracing")
				}
				var span *observability.Span
				ctx, span = observability.NewSpan(ctx, "cp")
				span.SetAttribute("source", args[0])
				span.SetAttribute("dest", args[1])
				defer span.End()
			}

			source, err := open.Driver(ctx, args[0], openArgs)
			if err != nil {
				return err
			}
			dest, err := open.Driver(ctx, args[1], openArgs)
			if err != nil {
				return err
			}

			opts := planner.Options{
				IfExists:       ifExists,
				FromArgs:       from,
				ToArgs:         to,
				WhereClause:    whereClause,
				MaxStreams:     maxStreams,
				StreamSizeHint: streamSize,
			}
			if schemaFile != "" {
				schema, err := loadSchemaFile(schemaFile)
				if err != nil {
					return err
				}
				opts.SchemaSource = planner.SchemaSource{Explicit: schema}
			}
			for _, prefix := range temporaries {
				log.Debug("temporary allowed", zap.String("prefix", prefix))
			}

			pool, cancel := dbcstream.NewWorkerPool(ctx)
			defer cancel()
			driverCtx := driver.Context{Context: pool.Context(), Pool: pool}

			result, err := planner.Plan(driverCtx, source, dest, opts)
			if err != nil {
				return err
			}
			if displayOutputLocs {
				fmt.Println(args[1])
			}
			log.Info("copy complete",
				zap.Int64("rows_written", result.Write.RowsWritten),
				zap.Bool("used_shortcut", result.UsedShortcut))
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaFile, "schema", "", "path to an explicit schema file, wins over source introspection")
	cmd.Flags().StringVar(&ifExistsFlag, "if-exists", "error", "error|append|overwrite|upsert-on:col1,col2")
	cmd.Flags().StringArrayVar(&temporaries, "temporary", nil, "locator prefix usable as scratch space (repeatable)")
	cmd.Flags().StringArrayVar(&fromArgs, "from-arg", nil, "key=value argument passed to the source driver (repeatable)")
	cmd.Flags().StringArrayVar(&toArgs, "to-arg", nil, "key=value argument passed to the destination driver (repeatable)")
	cmd.Flags().StringVar(&whereClause, "where", "", "row filter passed through to the source driver")
	cmd.Flags().Int64Var(&streamSize, "stream-size", 0, "approximate bytes per inner stream, 0 for driver default")
	cmd.Flags().IntVar(&maxStreams, "max-streams", 0, "maximum concurrent streams, 0 for unlimited")
	cmd.Flags().BoolVar(&displayOutputLocs, "display-output-locators", false, "print the destination locator on success")
	cmd.Flags().BoolVar(&enableUnstable, "enable-unstable", false, "allow locators behind experimental support")
	cmd.Flags().StringVar(&awsRegion, "aws-region", "", "AWS region for s3:// locators")
	cmd.Flags().StringVar(&redshiftStagingS3, "redshift-staging-s3", "", "s3:// prefix Redshift COPY loads through")
	cmd.Flags().StringVar(&redshiftIAMRole, "redshift-iam-role", "", "IAM role ARN Redshift assumes to read the staging prefix")
	cmd.Flags().StringVar(&snowflakeStage, "snowflake-stage", "", "external stage name Snowflake COPY INTO loads through")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug|info|warn|error")
	cmd.Flags().BoolVar(&enableTracing, "enable-tracing", false, "emit an OpenTelemetry span for this copy")

	return cmd
}

func newCountCmd() *cobra.Command {
	var whereClause string
	var schemaFile string

	cmd := &cobra.Command{
		Use:   "count LOCATOR",
		Short: "Print a fast row count for LOCATOR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			d, err := open.Driver(ctx, args[0], open.Args{})
			if err != nil {
				return err
			}

			schema, err := resolveCountSchema(ctx, d, schemaFile)
			if err != nil {
				return err
			}

			count, ok, err := d.Count(driver.Context{Context: ctx}, schema, whereClause)
			if err != nil {
				return err
			}
			if !ok {
				return dbcerrors.New(dbcerrors.KindUnsupportedFeature, "this locator's driver cannot compute a fast row count")
			}
			fmt.Println(strconv.FormatInt(count, 10))
			return nil
		},
	}
	cmd.Flags().StringVar(&whereClause, "where", "", "row filter passed through to the driver")
	cmd.Flags().StringVar(&schemaFile, "schema", "", "path to an explicit schema file")
	return cmd
}
