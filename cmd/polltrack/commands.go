package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"polltrack/internal"
	"polltrack/internal/connectors"
	"polltrack/internal/connectors/files"
	"polltrack/internal/listener"
	"polltrack/internal/pipeline"
)

func (a *app) postsImportCmd() *cobra.Command {
	var source, dir, keyword string
	var max int
	cmd := &cobra.Command{
		Use:   "posts:import",
		Short: "Read posts from a document directory or MongoDB into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			cfg.PostsDir = dir
			connector, err := connectors.NewPostConnector(cfg, source)
			if err != nil {
				return err
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			fetch := connectors.NewFetchService(db, connector, a.logger)
			result, err := fetch.FetchAndStore(keyword, max)
			if err != nil {
				return err
			}
			fmt.Printf("posts import done source=%s fetched=%d stored=%d changed=%d\n", source, result.Fetched, result.Stored, result.Changed)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", a.cfg.PostsSource, "files|mongo")
	cmd.Flags().StringVar(&dir, "dir", a.cfg.PostsDir, "directory of .json/.html post documents")
	cmd.Flags().StringVar(&keyword, "keyword", a.cfg.PostsKeyword, "case-insensitive text filter")
	cmd.Flags().IntVar(&max, "max", 0, "max posts (0 = all)")
	return cmd
}

func (a *app) postsDumpCmd() *cobra.Command {
	var out, keyword string
	var max int
	cmd := &cobra.Command{
		Use:   "posts:dump",
		Short: "Copy matching MongoDB posts to one JSON document per post",
		RunE: func(cmd *cobra.Command, args []string) error {
			connector, err := connectors.NewPostConnector(a.cfg, "mongo")
			if err != nil {
				return err
			}
			posts, err := connector.FetchPosts(keyword, max)
			if err != nil {
				return err
			}
			n, err := files.WriteDocuments(out, posts)
			if err != nil {
				return err
			}
			a.logger.Info("posts dumped", zap.Int("documents", n), zap.String("dir", out))
			fmt.Printf("posts dump done documents=%d dir=%s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", a.cfg.PostsDir, "output directory")
	cmd.Flags().StringVar(&keyword, "keyword", a.cfg.PostsKeyword, "case-insensitive text filter")
	cmd.Flags().IntVar(&max, "max", 0, "max posts (0 = all)")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	var source string
	var once bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the post source and re-extract when posts change",
		RunE: func(cmd *cobra.Command, args []string) error {
			connector, err := connectors.NewPostConnector(a.cfg, source)
			if err != nil {
				return err
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			svc := listener.NewService(db, a.cfg, a.tables, connector, a.logger)
			if once {
				res, err := svc.RunCycle(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("watch cycle done fetched=%d changed=%d extracted=%t\n", res.Fetched, res.Changed, res.Extracted)
				return nil
			}
			a.logger.Info("listener started", zap.String("source", source), zap.Int("interval_sec", a.cfg.WatchIntervalSec))
			return svc.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&source, "source", a.cfg.PostsSource, "files|mongo")
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	return cmd
}

func (a *app) extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Rebuild poll records from all stored posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := pipeline.NewProcessingService(db, a.cfg, a.tables, a.logger).ExtractStored(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("extract done trace=%s posts=%d records=%d skipped=%d\n", res.TraceID, res.Counts.Posts, res.Counts.Records, res.Counts.Skipped)
			return nil
		},
	}
}

func (a *app) historyImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "history:import",
		Short: "Load the UK Polling Report history file (.csv or .xlsx)",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := pipeline.NewProcessingService(db, a.cfg, a.tables, a.logger).ImportHistory(file)
			if err != nil {
				return err
			}
			fmt.Printf("history import done trace=%s records=%d\n", res.TraceID, res.Counts.Records)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", a.cfg.HistoryPath, "history file path")
	return cmd
}

func (a *app) exportXLSXCmd() *cobra.Command {
	var out, collection string
	cmd := &cobra.Command{
		Use:   "export:xlsx",
		Short: "Export stored records to a spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(out) == "" {
				out = filepath.Join(a.cfg.OutputDir, "polls.xlsx")
			}
			filter, err := buildFilter(collection, "", "", "", 0)
			if err != nil {
				return err
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := db.ListRecords(filter)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("no records to export")
			}
			if err := pipeline.ExportRecordsToXLSX(records, a.tables.Parties, out); err != nil {
				return err
			}
			fmt.Printf("exported %d records to %s\n", len(records), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output xlsx path")
	cmd.Flags().StringVar(&collection, "collection", "", "britainelects|uk_prh (default both)")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	var collection, from, to, source string
	var limit int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print stored records as a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := buildFilter(collection, from, to, source, limit)
			if err != nil {
				return err
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := db.ListRecords(filter)
			if err != nil {
				return err
			}
			pipeline.RenderTable(os.Stdout, records, a.tables.Parties)
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "britainelects|uk_prh")
	cmd.Flags().StringVar(&from, "from", "", "first effective date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last effective date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&source, "source", "", "pollster")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows (0 = all)")
	return cmd
}

func (a *app) pollstersCmd() *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "pollsters",
		Short: "Summarise stored records per pollster",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := buildFilter(collection, "", "", "", 0)
			if err != nil {
				return err
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := db.ListRecords(filter)
			if err != nil {
				return err
			}
			pipeline.RenderSummaries(os.Stdout, pipeline.NewIndex(records).Summaries(), a.tables.Parties)
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "britainelects|uk_prh")
	return cmd
}

func (a *app) runCmd() *cobra.Command {
	var dir, output, history, from, to, source string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract posts from a directory straight to a spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" || output == "" {
				return fmt.Errorf("--dir and --output are required")
			}
			filter, err := buildFilter("", from, to, source, 0)
			if err != nil {
				return err
			}
			posts, err := files.NewDirConnector(dir).FetchPosts(a.cfg.PostsKeyword, 0)
			if err != nil {
				return err
			}
			idx, err := pipeline.RunOnce(cmd.Context(), a.cfg, a.tables, posts, history, a.logger)
			if err != nil {
				return err
			}
			records := idx.Select(filter)
			if err := pipeline.ExportRecordsToXLSX(records, a.tables.Parties, output); err != nil {
				return err
			}
			fmt.Printf("run done posts=%d records=%d output=%s\n", len(posts), len(records), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory of post documents")
	cmd.Flags().StringVar(&output, "output", "", "output xlsx path")
	cmd.Flags().StringVar(&history, "history", "", "optional history file to merge")
	cmd.Flags().StringVar(&from, "from", "", "first effective date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last effective date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&source, "source", "", "pollster")
	return cmd
}

func buildFilter(collection, from, to, source string, limit int) (internal.RecordFilter, error) {
	filter := internal.RecordFilter{Limit: limit}
	switch c := internal.CollectionSource(collection); c {
	case "":
	case internal.CollectionBritainElects, internal.CollectionPollingReport:
		filter.Collection = &c
	default:
		return filter, fmt.Errorf("unknown collection: %s", collection)
	}
	if from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return filter, fmt.Errorf("--from: %w", err)
		}
		filter.From = &t
	}
	if to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return filter, fmt.Errorf("--to: %w", err)
		}
		end := t.Add(24*time.Hour - time.Second)
		filter.To = &end
	}
	if source != "" {
		filter.Source = &source
	}
	return filter, nil
}
