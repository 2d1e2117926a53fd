package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/scipunch/newsdesk/render"
)

// ErrQuit is returned by Dispatch for the quit command.
var ErrQuit = errors.New("quit")

const help = `commands:
  prev | p              previous day
  next | n              next day (not past today)
  today                 jump to today
  date YYYY-MM-DD       jump to a date
  source KEY | s KEY    show one source, or "all"
  sources               list sources
  reload | r            reload, bypassing the session cache
  fetch | f             crawl the current source now
  star N                toggle the star of card N
  open N                read article N
  selection | sel       show starred articles
  news                  back to the news page
  show                  redraw the page
  quit | q              leave`

// Run loads the page and executes commands read from in until quit or EOF.
func (a *App) Run(ctx context.Context, in io.Reader, startInSelection bool) error {
	defer a.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if startInSelection {
		a.Selection()
	} else {
		a.LoadPage(false)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := a.Dispatch(line)
			if errors.Is(err, ErrQuit) {
				return nil
			}
			if err != nil {
				a.view.Message("error: %v", err)
			}
		}
	}
}

// Dispatch executes one command line.
func (a *App) Dispatch(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "prev", "p":
		a.Prev()
	case "next", "n":
		if !a.Next() {
			a.view.Message("already showing today")
		}
	case "today":
		return a.SetDate(a.nav.Today().Format(time.DateOnly))
	case "date", "d":
		if len(args) != 1 {
			return fmt.Errorf("usage: date YYYY-MM-DD")
		}
		return a.SetDate(args[0])
	case "source", "s":
		if len(args) != 1 {
			return fmt.Errorf("usage: source KEY (one of all, %s)", strings.Join(a.conf.SourceKeys(), ", "))
		}
		return a.SetSource(args[0])
	case "sources":
		render.SourcesTable(a.out, a.conf.Sources)
	case "reload", "r":
		a.LoadPage(true)
	case "fetch", "f":
		return a.Fetch()
	case "star":
		n, err := cardArg(args)
		if err != nil {
			return err
		}
		return a.Star(n)
	case "open", "o":
		n, err := cardArg(args)
		if err != nil {
			return err
		}
		return a.Open(n)
	case "selection", "sel":
		a.Selection()
	case "news":
		a.LoadPage(false)
	case "show":
		a.view.Redraw()
	case "help", "h", "?":
		a.view.Message("%s", help)
	case "quit", "q", "exit":
		return ErrQuit
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

func cardArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected a card number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid card number %q", args[0])
	}
	return n, nil
}
