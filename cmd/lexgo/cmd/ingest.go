package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/hupe1980/lexgo"
	"github.com/hupe1980/lexgo/model"
)

type ingestOptions struct {
	index  string
	commit bool
	watch  bool
	quiet  bool
}

func newIngestCmd(cfg *Config) *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest <file.jsonl> [file.jsonl ...]",
		Short: "Ingest documents from JSON lines files",
		Long: `Ingest reads documents from JSON lines files, one {"id": ..., "text": ...}
object per line, and adds them to the index. Pass "-" to read from stdin.

With --watch the command keeps running and re-ingests a file whenever it
changes on disk.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.watch {
				for _, arg := range args {
					if arg == "-" {
						return fmt.Errorf("--watch cannot follow stdin")
					}
				}
			}

			return runIngest(cmd.Context(), cmd, cfg, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.index, "index", "i", "lexgo-index", "Path to the index directory")
	cmd.Flags().BoolVar(&opts.commit, "commit", true, "Commit after ingesting")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Keep watching the files and re-ingest on change")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress progress output")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, cfg *Config, files []string, opts ingestOptions) error {
	lopts, err := cfg.Options()
	if err != nil {
		return err
	}

	idx, err := lexgo.Open(opts.index, lopts...)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer func() { _ = idx.Close() }()

	var progress model.ProgressFunc
	if !opts.quiet {
		progress = func(indexed, total uint64) {
			fmt.Fprintf(cmd.ErrOrStderr(), "indexed %d/%d\n", indexed, total)
		}
	}

	for _, file := range files {
		if err := ingestFile(ctx, cmd, idx, file, progress); err != nil {
			return err
		}
	}

	if opts.commit {
		if err := idx.Commit(ctx); err != nil {
			return fmt.Errorf("committing: %w", err)
		}
	}

	if !opts.watch {
		return nil
	}

	return watchAndIngest(ctx, cmd, idx, files, opts, progress)
}

func ingestFile(ctx context.Context, cmd *cobra.Command, idx *lexgo.Index, file string, progress model.ProgressFunc) error {
	var r io.Reader

	if file == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("opening %s: %w", file, err)
		}
		defer f.Close()

		r = f
	}

	docs, err := readDocs(r)
	if err != nil {
		return fmt.Errorf("reading %s: %w", displayName(file), err)
	}

	indexed, err := idx.IngestBatch(ctx, docs, progress)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", displayName(file), err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d of %d documents indexed\n", displayName(file), indexed, len(docs))

	return nil
}

// readDocs parses JSON lines into documents. Blank lines are skipped and a
// malformed line fails the whole file before anything is ingested.
func readDocs(r io.Reader) ([]model.Document, error) {
	var docs []model.Document

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++

		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		var doc model.Document
		if err := json.Unmarshal(text, &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		docs = append(docs, doc)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return docs, nil
}

func displayName(file string) string {
	if file == "-" {
		return "stdin"
	}

	return file
}

// watchAndIngest re-ingests a file whenever it changes. Editors often
// replace files via rename, so the watches go on the parent directories and
// events are matched back to the target files.
func watchAndIngest(ctx context.Context, cmd *cobra.Command, idx *lexgo.Index, files []string, opts ingestOptions, progress model.ProgressFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	targets := make(map[string]string, len(files))
	dirs := make(map[string]struct{})

	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}

		targets[abs] = file
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "watching %d file(s), ctrl-c to stop\n", len(targets))

	const debounce = 200 * time.Millisecond

	pending := make(map[string]struct{})

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}

			if _, ok := targets[abs]; !ok {
				continue
			}

			pending[abs] = struct{}{}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
		case <-timer.C:
			for abs := range pending {
				delete(pending, abs)

				if err := ingestFile(ctx, cmd, idx, targets[abs], progress); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
					continue
				}

				if opts.commit {
					if err := idx.Commit(ctx); err != nil {
						return fmt.Errorf("committing: %w", err)
					}
				}
			}
		}
	}
}
