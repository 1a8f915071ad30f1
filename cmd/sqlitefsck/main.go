// Command sqlitefsck inspects a SQLite database file at the raw page
// level, exposing the accounting engine's five queries as kong
// struct-tag subcommands: argument parsing, stdout formatting, and
// file-descriptor plumbing are deliberately this command's job and
// not the core engine's (spec §1).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/dkrause/sqlitefsck/internal/accountant"
	"github.com/dkrause/sqlitefsck/internal/flog"
	"github.com/dkrause/sqlitefsck/internal/pager"
	"github.com/dkrause/sqlitefsck/report"
	"github.com/dkrause/sqlitefsck/schema"
)

const version = "0.1.0"

// CLI is the top-level kong command tree: one noun-first command per
// façade query.
var CLI struct {
	Freelist  FreelistCmd  `cmd:"" help:"Check freelist trunk/leaf integrity against the header count"`
	Account   AccountCmd   `cmd:"" help:"Classify every page and total against header metadata"`
	Conflicts ConflictsCmd `cmd:"" help:"Report pages claimed by both the freelist and a reachable b-tree"`
	Owner     OwnerCmd     `cmd:"" help:"Report which schema roots reach a given page"`
	Dump      DumpCmd      `cmd:"" help:"Locate a cell by rowid and dump its raw record"`
	Version   VersionCmd   `cmd:"" help:"Print version information"`
}

// SchemaFlags is embedded by the three commands (account, conflicts,
// owner) that need a (name, root_page) seed list.
type SchemaFlags struct {
	SchemaDB string `name:"schema-db" help:"Optional companion SQLite connection for engine-validated schema roots; defaults to a raw page-1 walk" type:"path"`
}

func (f SchemaFlags) open(path string, p *pager.Pager) (schema.Source, func(), error) {
	if f.SchemaDB == "" {
		return schema.NewPageOneSource(p), func() {}, nil
	}
	src, err := schema.OpenSQLiteSource(f.SchemaDB)
	if err != nil {
		return nil, func() {}, err
	}
	return src, func() { src.Close() }, nil
}

func resolveRoots(ctx context.Context, f SchemaFlags, dbPath string, p *pager.Pager) ([]accountant.Root, error) {
	src, closeFn, err := f.open(dbPath, p)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	rows, err := src.Roots(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]accountant.Root, 0, len(rows))
	for _, r := range rows {
		out = append(out, accountant.Root{Name: r.Name, RootPage: r.Page})
	}
	return out, nil
}

// FreelistCmd runs the freelist_check query.
type FreelistCmd struct {
	Path string `arg:"" help:"Path to the SQLite database file" type:"existingfile"`
}

func (c *FreelistCmd) Run() error {
	p, err := pager.Open(c.Path)
	if err != nil {
		return err
	}
	res, err := accountant.FreelistCheck(p)
	if err != nil {
		return err
	}
	return report.FreelistCheck(os.Stdout, res)
}

// AccountCmd runs the account query.
type AccountCmd struct {
	Path        string `arg:"" help:"Path to the SQLite database file" type:"existingfile"`
	OrphansOut  string `name:"orphans-out" help:"File to write one orphan page number per line" type:"path"`
	UnknownOut  string `name:"unknown-out" help:"File to write one unknown page number per line" type:"path"`
	LogJSON     bool   `name:"log-json" help:"Emit diagnostics as structured JSON instead of text"`
	SchemaFlags `embed:""`
}

func (c *AccountCmd) Run() error {
	p, err := pager.Open(c.Path)
	if err != nil {
		return err
	}
	roots, err := resolveRoots(context.Background(), c.SchemaFlags, c.Path, p)
	if err != nil {
		return err
	}

	format := flog.FormatText
	if c.LogJSON {
		format = flog.FormatJSON
	}
	logger := flog.New(os.Stderr, slog.LevelInfo, format)

	res, err := accountant.Account(p, roots, logger)
	if err != nil {
		return err
	}
	if err := report.Account(os.Stdout, res); err != nil {
		return err
	}
	if c.OrphansOut != "" {
		if err := writeListFile(c.OrphansOut, res.OrphanPages); err != nil {
			return err
		}
	}
	if c.UnknownOut != "" {
		if err := writeListFile(c.UnknownOut, res.UnknownPages); err != nil {
			return err
		}
	}
	return nil
}

func writeListFile(path string, pages []uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return report.WriteList(f, pages)
}

// ConflictsCmd runs the find_conflicts query.
type ConflictsCmd struct {
	Path        string `arg:"" help:"Path to the SQLite database file" type:"existingfile"`
	SchemaFlags `embed:""`
}

func (c *ConflictsCmd) Run() error {
	p, err := pager.Open(c.Path)
	if err != nil {
		return err
	}
	roots, err := resolveRoots(context.Background(), c.SchemaFlags, c.Path, p)
	if err != nil {
		return err
	}
	res, err := accountant.FindConflicts(p, roots)
	if err != nil {
		return err
	}
	return report.Conflicts(os.Stdout, res)
}

// OwnerCmd runs the page_owner query.
type OwnerCmd struct {
	Path        string `arg:"" help:"Path to the SQLite database file" type:"existingfile"`
	Pgno        uint32 `arg:"" help:"Page number to look up"`
	SchemaFlags `embed:""`
}

func (c *OwnerCmd) Run() error {
	p, err := pager.Open(c.Path)
	if err != nil {
		return err
	}
	roots, err := resolveRoots(context.Background(), c.SchemaFlags, c.Path, p)
	if err != nil {
		return err
	}
	res, err := accountant.PageOwner(p, roots, c.Pgno)
	if err != nil {
		return err
	}
	return report.Owner(os.Stdout, res)
}

// DumpCmd runs the dump_rowid query.
type DumpCmd struct {
	Path  string `arg:"" help:"Path to the SQLite database file" type:"existingfile"`
	Root  uint32 `arg:"" help:"Root page of the table b-tree to search"`
	Rowid int64  `arg:"" help:"Rowid to locate"`
}

func (c *DumpCmd) Run() error {
	p, err := pager.Open(c.Path)
	if err != nil {
		return err
	}
	res, err := accountant.DumpRowid(p, c.Root, c.Rowid)
	if err != nil {
		return err
	}
	if err := report.Dump(os.Stdout, res); err != nil {
		return err
	}
	if !res.Found {
		os.Exit(1)
	}
	return nil
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println("sqlitefsck " + version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("sqlitefsck"),
		kong.Description("Raw-page-level forensic inspection for SQLite database files"),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
