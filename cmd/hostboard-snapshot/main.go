// Command hostboard-snapshot moves a hostboard inventory between a SQLite
// file and the JSON snapshot pair (categories.json, hosts.json).
//
//	hostboard-snapshot export [-summary] [-s3] <database-file> <output-dir>
//	hostboard-snapshot import [-force] [-s3 <prefix>] <database-dir> [<snapshot-dir> | <hosts.json> [<categories.json>]]
//	hostboard-snapshot summary <database-file>
//
// Without a snapshot argument, import reads the pair from the database
// directory itself. S3 settings are read from the same environment as the server (S3_*).
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"hostboard/internal/config"
	"hostboard/internal/database"
	"hostboard/internal/models"
	"hostboard/internal/snapshot"
	"hostboard/internal/storage"
	"hostboard/internal/store"
)

// dbFileName is the file import creates inside the database directory.
const dbFileName = "dashboard.db"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		slog.Error("snapshot failed", "error", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage:")
	fmt.Fprintln(w, "  hostboard-snapshot export [-summary] [-s3] <database-file> <output-dir>")
	fmt.Fprintln(w, "  hostboard-snapshot import [-force] [-s3 <prefix>] <database-dir> [<snapshot-dir> | <hosts.json> [<categories.json>]]")
	fmt.Fprintln(w, "  hostboard-snapshot summary <database-file>")
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		usage(stdout)
		return errors.New("missing command")
	}
	switch args[0] {
	case "export":
		return runExport(ctx, args[1:], stdout)
	case "import":
		return runImport(ctx, args[1:], stdout)
	case "summary":
		if len(args) != 2 {
			usage(stdout)
			return errors.New("summary takes exactly one database file")
		}
		db, err := openExisting(args[1])
		if err != nil {
			return err
		}
		defer db.Close()
		return printSummary(ctx, db, args[1], stdout)
	}
	usage(stdout)
	return fmt.Errorf("unknown command %q", args[0])
}

func runExport(ctx context.Context, args []string, stdout io.Writer) error {
	fset := flag.NewFlagSet("export", flag.ContinueOnError)
	summary := fset.Bool("summary", false, "print a database summary before exporting")
	toS3 := fset.Bool("s3", false, "also upload the snapshot to the configured S3 bucket")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() != 2 {
		usage(stdout)
		return errors.New("export takes a database file and an output directory")
	}
	dbFile, outDir := fset.Arg(0), fset.Arg(1)

	db, err := openExisting(dbFile)
	if err != nil {
		return err
	}
	defer db.Close()

	if *summary {
		if err := printSummary(ctx, db, dbFile, stdout); err != nil {
			return err
		}
	}

	snap, err := snapshot.NewCodec(db, database.SQLite).Export(ctx)
	if err != nil {
		return err
	}
	if err := snap.WriteDir(outDir); err != nil {
		return err
	}

	abs, _ := filepath.Abs(outDir)
	fmt.Fprintf(stdout, "Exported %d categories and %d hosts to %s\n", len(snap.Categories), len(snap.Hosts), abs)

	if *toS3 {
		client, err := backupClient()
		if err != nil {
			return err
		}
		prefix := client.BackupPrefix(time.Now(), uuid.NewString())
		keys, err := snap.Publish(ctx, client, client.Bucket(), prefix)
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Fprintf(stdout, "Uploaded %s\n", client.ObjectURL(k))
		}
	}
	return nil
}

func runImport(ctx context.Context, args []string, stdout io.Writer) error {
	fset := flag.NewFlagSet("import", flag.ContinueOnError)
	force := fset.Bool("force", false, "replace an existing database file")
	fromS3 := fset.String("s3", "", "read the snapshot pair from this S3 key prefix instead of local files")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() < 1 || fset.NArg() > 3 || (*fromS3 != "" && fset.NArg() != 1) {
		usage(stdout)
		return errors.New("import takes a database directory and up to two snapshot files")
	}
	dbDir := fset.Arg(0)

	// Read the snapshot before touching the target.
	var (
		snap *snapshot.Snapshot
		err  error
	)
	switch {
	case *fromS3 != "":
		client, cerr := backupClient()
		if cerr != nil {
			return cerr
		}
		snap, err = snapshot.Fetch(ctx, client, client.Bucket(), *fromS3)
	case fset.NArg() == 1:
		snap, err = snapshot.LoadDir(dbDir)
	case isDir(fset.Arg(1)):
		snap, err = snapshot.LoadDir(fset.Arg(1))
	default:
		hostsFile := fset.Arg(1)
		categoriesFile := filepath.Join(filepath.Dir(hostsFile), snapshot.CategoriesFile)
		if fset.NArg() == 3 {
			categoriesFile = fset.Arg(2)
		}
		snap, err = snapshot.Load(hostsFile, categoriesFile)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Found %d categories and %d hosts\n", len(snap.Categories), len(snap.Hosts))

	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	dbFile := filepath.Join(dbDir, dbFileName)
	if _, err := os.Stat(dbFile); err == nil {
		if !*force {
			return fmt.Errorf("database %s already exists, use -force to replace it", dbFile)
		}
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(dbFile + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("remove existing database: %w", err)
			}
		}
		slog.Info("existing database removed", "path", dbFile)
	}

	db, err := database.Connect(database.SQLite, database.SQLiteDSN(dbFile))
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(db, database.SQLite); err != nil {
		return err
	}

	res, err := snapshot.NewCodec(db, database.SQLite).Import(ctx, snap)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Imported %d categories and %d hosts into %s\n", res.Categories, res.Hosts, dbFile)
	if res.Skipped > 0 {
		fmt.Fprintf(stdout, "Skipped %d entries with non-numeric ids\n", res.Skipped)
	}
	if res.DroppedRefs > 0 {
		fmt.Fprintf(stdout, "Cleared %d unresolved category references\n", res.DroppedRefs)
	}
	return nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// openExisting opens a SQLite file read-only, without creating it.
func openExisting(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database file %s: %w", path, err)
	}
	return database.Connect(database.SQLite, database.SQLiteReadOnlyDSN(path))
}

func backupClient() (*storage.Client, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	client, err := storage.New(
		cfg.Storage.Endpoint, cfg.Storage.Region, cfg.Storage.AccessKey, cfg.Storage.SecretKey,
		cfg.Storage.Bucket, cfg.Storage.Prefix,
	)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("S3 is not configured (set S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY and S3_BUCKET)")
	}
	return client, nil
}

// printSummary writes table counts. Missing tables are reported, not
// treated as errors, so legacy files can be inspected.
func printSummary(ctx context.Context, db *sql.DB, name string, w io.Writer) error {
	fmt.Fprintln(w, "=== Database Summary ===")
	fmt.Fprintf(w, "Database: %s\n", name)

	ok, err := database.TableExists(ctx, db, database.SQLite, "categories")
	if err != nil {
		return err
	}
	if ok {
		n, err := store.NewCategoryStore(db).Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Categories: %d\n", n)
	} else {
		fmt.Fprintln(w, "Categories: 0 (table doesn't exist)")
	}

	ok, err = database.TableExists(ctx, db, database.SQLite, "hosts")
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(w, "Hosts: 0 (table doesn't exist)")
		fmt.Fprintln(w, "========================")
		return nil
	}
	hosts := store.NewHostStore(db)
	n, err := hosts.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Hosts: %d\n", n)

	counts, err := hosts.CountByStatus(ctx)
	if err != nil {
		return err
	}
	for _, s := range []models.Status{models.StatusOnline, models.StatusOffline, models.StatusUnknown} {
		if counts[s] > 0 {
			fmt.Fprintf(w, "  - %s: %d\n", s, counts[s])
		}
	}
	fmt.Fprintln(w, "========================")
	return nil
}
