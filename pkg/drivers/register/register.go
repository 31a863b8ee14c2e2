// Package register blank-imports every driver package so its init()
// registers its locator scheme(s), pulling in every driver package by
// side-effect rather than each caller wiring driver packages by hand.
package register

import (
	_ "github.com/dbcrossbar/dbcrossbar/pkg/drivers/bigquery"
	_ "github.com/dbcrossbar/dbcrossbar/pkg/drivers/csvfile"
	_ "github.com/dbcrossbar/dbcrossbar/pkg/drivers/dbcrossbarschema"
	_ "github.com/dbcrossbar/dbcrossbar/pkg/drivers/dbcrossbarts"
	_ "github.com/dbcrossbar/dbcrossbar/pkg/drivers/gs"
	_ "github.com/dbcrossbar/dbcrossbar/pkg/drivers/mysql"
	_ "github.com/dbcrossbar/dbcrossbar/pkg/drivers/postgres"
	_ "github.com/dbcrossbar/dbcrossbar/pkg/drivers/redshift"
	_ "github.com/dbcrossbar/dbcrossbar/pkg/drivers/s3"
	_ "github.com/dbcrossbar/dbcrossbar/pkg/drivers/snowflake"
	_ "github.com/dbcrossbar/dbcrossbar/pkg/drivers/stub"
)
