package main

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lawyrs/internal/memory"
)

const (
	archiveDBName     = "lawyrs.db"
	archiveConfigName = "config.yaml"
)

func backupCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the practice database and config",
		Long: `Creates a compressed .tar.gz archive holding a consistent snapshot of
the SQLite database and the configuration file. The backup is timestamped by
default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfgPath := resolveConfigPath()

			if outputPath == "" {
				backupDir := filepath.Join(filepath.Dir(cfg.Database.Path), "backups")
				if err := os.MkdirAll(backupDir, 0o755); err != nil {
					return fmt.Errorf("cannot create backup directory: %w", err)
				}
				outputPath = filepath.Join(backupDir, fmt.Sprintf("lawyrs-backup-%s.tar.gz", time.Now().Format("20060102-150405")))
			}

			store, err := memory.NewSQLiteStore(cfg.Database.Path, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			tmp, err := os.MkdirTemp("", "lawyrs-backup-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(tmp)

			snapshot := filepath.Join(tmp, archiveDBName)
			if err := store.Snapshot(cmd.Context(), snapshot); err != nil {
				return err
			}

			entries := map[string]string{archiveDBName: snapshot}
			if _, err := os.Stat(cfgPath); err == nil {
				entries[archiveConfigName] = cfgPath
			}
			if err := createArchive(outputPath, entries); err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backup created: %s\n", outputPath)
			for name, path := range entries {
				size := int64(0)
				if info, err := os.Stat(path); err == nil {
					size = info.Size()
				}
				fmt.Fprintf(out, "  - %s (%s)\n", name, humanize.IBytes(uint64(size)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default: <db dir>/backups/lawyrs-backup-<timestamp>.tar.gz)")
	return cmd
}

func restoreCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore [file.tar.gz]",
		Short: "Restore the database and config from a backup archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			targets := map[string]string{
				archiveDBName:     cfg.Database.Path,
				archiveConfigName: resolveConfigPath(),
			}

			if !force {
				for _, path := range targets {
					if _, err := os.Stat(path); err == nil {
						return fmt.Errorf("%s exists; restore aborted (use --force to overwrite)", path)
					}
				}
			}

			restored, err := extractArchive(cmd.Context(), args[0], targets)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			// A stale WAL would be replayed over the restored file.
			for _, suffix := range []string{"-wal", "-shm"} {
				_ = os.Remove(cfg.Database.Path + suffix)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d file(s) from %s\n", len(restored), args[0])
			for _, f := range restored {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing data")
	return cmd
}

// createArchive writes a .tar.gz holding each file under its entry name.
func createArchive(outputPath string, entries map[string]string) error {
	outFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	gzWriter := gzip.NewWriter(outFile)
	tarWriter := tar.NewWriter(gzWriter)

	for name, path := range entries {
		if err := addFileToTar(tarWriter, name, path); err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
	}
	if err := tarWriter.Close(); err != nil {
		return err
	}
	if err := gzWriter.Close(); err != nil {
		return err
	}
	return outFile.Close()
}

func addFileToTar(tw *tar.Writer, name, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = name

	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, file)
	return err
}

// extractArchive restores the known entries of an archive to their targets.
// Unknown entries are skipped.
func extractArchive(ctx context.Context, archivePath string, targets map[string]string) ([]string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("not a valid gzip file: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	var restored []string
	for {
		if err := ctx.Err(); err != nil {
			return restored, err
		}
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return restored, err
		}

		target, ok := targets[filepath.Base(header.Name)]
		if !ok || header.Typeflag != tar.TypeReg {
			continue
		}
		if err := writeFile(target, tarReader); err != nil {
			return restored, fmt.Errorf("extract %s: %w", target, err)
		}
		restored = append(restored, target)
	}
	if len(restored) == 0 {
		return nil, fmt.Errorf("%s holds no lawyrs data", archivePath)
	}
	return restored, nil
}

func writeFile(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
