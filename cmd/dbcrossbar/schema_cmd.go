package main

import (
	"context"
	"fmt"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/open"
	"github.com/spf13/cobra"
)

// resolveCountSchema loads schemaFile if given, otherwise introspects
// d; count needs a schema regardless of source since every driver's
// Count implementation builds its query from the table name schema
// carries.
func resolveCountSchema(ctx context.Context, d driver.Driver, schemaFile string) (*dbcschema.Schema, error) {
	if schemaFile != "" {
		return loadSchemaFile(schemaFile)
	}
	schema, ok, err := d.Schema(driver.Context{Context: ctx})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dbcerrors.New(dbcerrors.KindSchemaMismatch, "no --schema given and this locator does not support introspection")
	}
	return schema, nil
}

func newSchemaCmd() *cobra.Command {
	parent := &cobra.Command{
		Use:   "schema",
		Short: "Work with table schemas directly, without copying data",
	}
	parent.AddCommand(newSchemaConvCmd())
	return parent
}

// newSchemaConvCmd implements `schema conv SOURCE DEST`: read SOURCE's
// schema (an explicit --schema file, or introspection when SOURCE is
// a live driver) and render it in DEST's native format. DEST must be
// one of the schema-only locators (dbcrossbar-schema:, dbcrossbar-ts:),
// since no relational
// or warehouse driver exposes a bare "write schema, no data" path
// beyond what WriteLocalData's if-exists handling already does.
func newSchemaConvCmd() *cobra.Command {
	var schemaFile string

	cmd := &cobra.Command{
		Use:   "conv SOURCE-LOCATOR DEST-LOCATOR",
		Short: "Convert a schema from one native dialect to another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			var schema *dbcschema.Schema
			if schemaFile != "" {
				parsed, err := loadSchemaFile(schemaFile)
				if err != nil {
					return err
				}
				schema = parsed
			} else {
				source, err := open.Driver(ctx, args[0], open.Args{})
				if err != nil {
					return err
				}
				parsed, ok, err := source.Schema(driver.Context{Context: ctx})
				if err != nil {
					return err
				}
				if !ok {
					return dbcerrors.New(dbcerrors.KindSchemaMismatch, "source locator does not support schema introspection; pass --schema")
				}
				schema = parsed
			}

			dest, err := open.Driver(ctx, args[1], open.Args{})
			if err != nil {
				return err
			}
			writer, ok := dest.(open.SchemaWriter)
			if !ok {
				return dbcerrors.Newf(dbcerrors.KindUnsupportedFeature, "%s cannot be written as a bare schema; only dbcrossbar-schema: and dbcrossbar-ts: locators support schema conv as a destination", args[1])
			}
			return writer.WriteSchema(schema)
		},
	}
	cmd.Flags().StringVar(&schemaFile, "schema", "", "path to an explicit schema file instead of introspecting SOURCE-LOCATOR")
	return cmd
}

func newFeaturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "features LOCATOR",
		Short: "Print the capabilities LOCATOR's driver advertises",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := open.Driver(context.Background(), args[0], open.Args{})
			if err != nil {
				return err
			}
			f := d.Features()
			fmt.Printf("read_schema:            %v\n", f.ReadSchema)
			fmt.Printf("write_schema:           %v\n", f.WriteSchema)
			fmt.Printf("read_data:              %v\n", f.ReadData)
			fmt.Printf("write_data:             %v\n", f.WriteData)
			fmt.Printf("if_exists.error:        %v\n", f.IfExistsError)
			fmt.Printf("if_exists.append:       %v\n", f.IfExistsAppend)
			fmt.Printf("if_exists.overwrite:    %v\n", f.IfExistsOverwrite)
			fmt.Printf("if_exists.upsert_on:    %v\n", f.IfExistsUpsertOn)
			fmt.Printf("count:                  %v\n", f.Count)
			fmt.Printf("case_insensitive_names: %v\n", f.CaseInsensitiveNames)
			fmt.Printf("temporaries_required:   %v\n", f.TemporariesRequired)
			fmt.Printf("source_args:            %v\n", f.SourceArgs)
			fmt.Printf("dest_args:              %v\n", f.DestArgs)
			return nil
		},
	}
	return cmd
}
