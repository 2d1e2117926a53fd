package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/scipunch/newsdesk/api"
	"github.com/scipunch/newsdesk/app"
	"github.com/scipunch/newsdesk/cache"
	"github.com/scipunch/newsdesk/fakeapi"
	"github.com/scipunch/newsdesk/navigator"
	"github.com/scipunch/newsdesk/poller"
	"github.com/scipunch/newsdesk/render"
)

func newApp(ctx context.Context, e *env) *app.App {
	return app.New(ctx, app.Deps{
		Config:  e.conf,
		Client:  e.client,
		Session: e.session,
		Out:     os.Stdout,
		Width:   render.TerminalWidth(os.Stdout),
	})
}

func browseCommand() *cobra.Command {
	var selection bool
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Interactive news page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := setup()
			defer e.close()

			if render.IsTerminal(os.Stdin) {
				fmt.Println("type help for commands")
			}
			return newApp(cmd.Context(), e).Run(cmd.Context(), os.Stdin, selection)
		},
	}
	cmd.Flags().BoolVar(&selection, "selection", false, "start on the selection page")
	return cmd
}

func newsCommand() *cobra.Command {
	var (
		date    string
		source  string
		refresh bool
		wait    bool
	)
	cmd := &cobra.Command{
		Use:   "news",
		Short: "Print the news of a date and source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := setup()
			defer e.close()

			if source != navigator.AllSources {
				if _, ok := e.conf.Source(source); !ok {
					return fmt.Errorf("%w: %s", navigator.ErrUnknownSource, source)
				}
			}
			if date != "" {
				if _, err := time.Parse(time.DateOnly, date); err != nil {
					return fmt.Errorf("invalid date %q: %w", date, err)
				}
				if err := e.session.SetString(navigator.KeyDate, date); err != nil {
					return err
				}
			}
			if err := e.session.SetString(navigator.KeySource, source); err != nil {
				return err
			}

			a := newApp(cmd.Context(), e)
			defer a.Close()
			a.LoadPage(refresh)
			if wait {
				return a.Wait(cmd.Context())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&source, "source", navigator.AllSources, "source key or all")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "skip the session cache")
	cmd.Flags().BoolVar(&wait, "wait", false, "follow a running crawl until the page is loaded")
	return cmd
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status SOURCE",
		Short: "Print the crawl status of a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := setup()
			defer e.close()

			status, err := e.client.CrawlStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			width := render.TerminalWidth(os.Stdout)
			fmt.Printf("%s: %s\n%s\n", args[0], status.State,
				render.ProgressBar(poller.ClampProgress(status.Progress), status.TotalArticles, max(10, min(40, width-40))))
			for _, line := range status.Logs {
				fmt.Printf("  › %s\n", line)
			}
			return nil
		},
	}
}

func crawlCommand() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "crawl SOURCE",
		Short: "Start a crawl and follow its progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := setup()
			defer e.close()

			source := args[0]
			if date == "" {
				date = time.Now().Format(time.DateOnly)
			}
			if err := e.client.StartCrawl(cmd.Context(), source, date); err != nil {
				return err
			}

			view := render.New(os.Stdout, render.Options{Width: render.TerminalWidth(os.Stdout), LogLimit: e.conf.LogLimit})
			view.ShowLoading()
			p := poller.New(e.client, view, poller.Options{Interval: e.conf.PollInterval.Duration})
			p.Start(cmd.Context(), source)
			defer p.Stop()
			return p.Wait(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	return cmd
}

func starCommand() *cobra.Command {
	var (
		off   bool
		title string
		src   string
	)
	cmd := &cobra.Command{
		Use:   "star URL",
		Short: "Add an article to the selection, or remove it with --off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := setup()
			defer e.close()

			item := api.NewsItem{Link: args[0], Title: title, Source: src}
			if err := e.client.Star(cmd.Context(), item, !off); err != nil {
				return err
			}
			slog.Info("star updated", "link", item.Link, "starred", !off)
			return nil
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "remove the star")
	cmd.Flags().StringVar(&title, "title", "", "title stored with the starred item")
	cmd.Flags().StringVar(&src, "source-name", "", "source label stored with the starred item")
	return cmd
}

func articleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "article URL",
		Short: "Print an article with its translation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := setup()
			defer e.close()

			article, err := e.client.Article(cmd.Context(), args[0])
			if err != nil {
				var statusErr *api.StatusError
				if errors.As(err, &statusErr) {
					fmt.Println(render.TextArticleFailed)
				} else {
					fmt.Println(render.TextNetworkError)
				}
				return err
			}
			return render.NewArticleRenderer().Write(os.Stdout, args[0], article)
		},
	}
}

func selectionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "selection",
		Short: "List starred articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := setup()
			defer e.close()

			resp, err := e.client.Selection(cmd.Context())
			if err != nil {
				return err
			}
			if resp.Status != api.StatusSuccess || len(resp.Data) == 0 {
				fmt.Println(render.TextEmptySel)
				return nil
			}
			render.SelectionTable(os.Stdout, resp.Data, render.TerminalWidth(os.Stdout))
			return nil
		},
	}
}

func sourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured sources",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			render.SourcesTable(os.Stdout, loadConfig().Sources)
		},
	}
}

func sessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage stored sessions",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored sessions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(func(e *env) error {
					sessions, err := e.store.Sessions()
					if err != nil {
						return err
					}
					stats, err := e.store.Stats()
					if err != nil {
						return err
					}
					render.SessionsTable(os.Stdout, sessions)
					render.StoreSummary(os.Stdout, stats)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "prune",
			Short: "Remove sessions idle longer than session_ttl",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(func(e *env) error {
					n, err := e.store.Prune(e.conf.SessionTTL.Duration)
					if err != nil {
						return err
					}
					fmt.Printf("removed %d sessions\n", n)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear ID",
			Short: "Remove a session and its cached pages",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(func(e *env) error {
					exists, err := e.store.Exists(args[0])
					if err != nil {
						return err
					}
					if !exists {
						return fmt.Errorf("session %s not found", args[0])
					}
					sess, err := e.store.Session(args[0])
					if err != nil {
						return err
					}
					return sess.Clear()
				})
			},
		},
	)
	return cmd
}

// withStore runs fn against the session store without opening a session.
func withStore(fn func(e *env) error) error {
	conf := loadConfig()
	store, err := cache.NewStore(conf.SessionPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(&env{conf: conf, store: store})
}

func fakeBackendCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "fake-backend",
		Short: "Serve an in-memory backend for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := loadConfig()
			sources := make(map[string]string)
			for _, s := range conf.Sources {
				sources[s.Key] = s.Name
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           fakeapi.New(sources).Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					slog.Warn("fake backend shutdown failed", "error", err)
				}
			}()

			slog.Info("fake backend listening", "addr", addr, "sources", len(sources))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5001", "listen address")
	return cmd
}
