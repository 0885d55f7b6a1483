package main

import (
	"fmt"
	"log"
	"os"
	"syscall"

	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/k0kubun/pgdvm"
)

var version string

// parseOptions mirrors the teacher's cmd/psqldef/psqldef.go parseOptions:
// go-flags struct-tag definitions, a password-prompt escape hatch, and a
// required positional argument (here the stream table name instead of a
// database name).
func parseOptions(args []string) *pgdvm.Options {
	var opts struct {
		User          string `short:"U" long:"user" description:"PostgreSQL user name" value-name:"username" default:"postgres"`
		Password      string `short:"W" long:"password" description:"PostgreSQL user password, overridden by $PGPASS" value-name:"password"`
		Host          string `short:"h" long:"host" description:"Host to connect to the PostgreSQL server" value-name:"hostname" default:"127.0.0.1"`
		Port          uint   `short:"p" long:"port" description:"Port used for the connection" value-name:"port" default:"5432"`
		Prompt        bool   `long:"password-prompt" description:"Force PostgreSQL user password prompt"`
		DbName        string `short:"d" long:"db" description:"Database to connect to" value-name:"database" default:"postgres"`
		CatalogSchema string `long:"catalog-schema" description:"Schema holding pgs_stream_tables/pgs_dependencies" value-name:"schema" default:"pgstream"`
		ChangeSchema  string `long:"change-schema" description:"Schema holding changes_<oid> buffers" value-name:"schema" default:"pgstream"`
		Apply         bool   `long:"apply" description:"Apply the computed delta to the stream table instead of printing it"`
		Help          bool   `long:"help" description:"Show this help"`
		Version       bool   `long:"version" description:"Show this version"`
	}

	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[option...] schema.stream_table"
	args, err := parser.ParseArgs(args)
	if err != nil {
		log.Fatal(err)
	}

	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if len(args) != 1 {
		fmt.Print("Exactly one stream table must be specified, as schema.table!\n\n")
		parser.WriteHelp(os.Stdout)
		os.Exit(1)
	}

	password, ok := os.LookupEnv("PGPASS")
	if !ok {
		password = opts.Password
	}
	if opts.Prompt {
		fmt.Printf("Enter Password: ")
		pass, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			log.Fatal(err)
		}
		password = string(pass)
		fmt.Println()
	}

	return &pgdvm.Options{
		Host:          opts.Host,
		Port:          int(opts.Port),
		User:          opts.User,
		Password:      password,
		DbName:        opts.DbName,
		CatalogSchema: opts.CatalogSchema,
		ChangeSchema:  opts.ChangeSchema,
		Table:         args[0],
		Apply:         opts.Apply,
	}
}

func main() {
	options := parseOptions(os.Args[1:])

	if err := pgdvm.Run(options); err != nil {
		log.Fatal(err)
	}
}
