// dietctl is the operator tool for a dietplan store.
// Usage (DIETPLAN_CONFIG_DIR selects the store, as for dietplan):
//
//	dietctl profiles
//	dietctl acl
//	dietctl sync [--include-system]
//	dietctl grant <owner_user> <subject_user> none|read|write
//	dietctl color <user> <color>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/dietplan/dietplan/internal/acl"
	"github.com/dietplan/dietplan/internal/config"
	"github.com/dietplan/dietplan/internal/identity"
	"github.com/dietplan/dietplan/internal/profiles"
	"github.com/dietplan/dietplan/internal/store"
)

const usageText = "usage: dietctl profiles | acl | sync [--include-system] | grant <owner_user> <subject_user> none|read|write | color <user> <color>"

var errUsage = errors.New(usageText)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usageText)
		os.Exit(2)
	}
	os.Exit(run(os.Args[1:]))
}

// run owns the store so it is closed before main exits.
func run(args []string) int {
	cfg, err := config.New("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	ctx := context.Background()
	db, err := store.Open(ctx, cfg.DBPath, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 1
	}
	defer db.Close()
	dir := profiles.NewDirectory(db, identity.File{Path: cfg.UsersFile}, nil)

	if err := runCmd(ctx, os.Stdout, db, dir, args); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usageText)
			return 2
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func runCmd(ctx context.Context, out io.Writer, db *store.DB, dir *profiles.Directory, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "profiles":
		ps, err := dir.List(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSER\tNAME\tCREATED")
		for _, p := range ps {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.ExternalUserID, p.DisplayName, p.CreatedAt)
		}
		return w.Flush()

	case "acl":
		es, err := acl.NewChecker(db).Entries(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "OWNER\tSUBJECT\tREAD\tWRITE")
		for _, e := range es {
			fmt.Fprintf(w, "%d\t%d\t%t\t%t\n", e.OwnerProfileID, e.SubjectProfileID, e.CanRead, e.CanWrite)
		}
		return w.Flush()

	case "sync":
		opts := profiles.SyncOptions{IncludeSystem: len(args) > 1 && args[1] == "--include-system"}
		n, err := dir.SyncFromIdentityProvider(ctx, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "profiles:", n)
		return nil

	case "grant":
		if len(args) != 4 {
			return errUsage
		}
		var read, write bool
		switch args[3] {
		case "none":
		case "read":
			read = true
		case "write":
			read, write = true, true
		default:
			return errUsage
		}
		owner, err := lookup(ctx, dir, args[1])
		if err != nil {
			return err
		}
		subject, err := lookup(ctx, dir, args[2])
		if err != nil {
			return err
		}
		if err := acl.NewChecker(db).Grant(ctx, owner, subject, read, write); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s -> %s: read=%t write=%t\n", args[2], args[1], read, write)
		return nil

	case "color":
		if len(args) != 3 {
			return errUsage
		}
		id, err := lookup(ctx, dir, args[1])
		if err != nil {
			return err
		}
		return dir.SetColor(ctx, id, args[2])
	}
	return errUsage
}

func lookup(ctx context.Context, dir *profiles.Directory, user string) (int64, error) {
	id, ok, err := dir.Resolve(ctx, user)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("no profile for user %q", user)
	}
	return id, nil
}
