// Command myr is the interactive terminal workbench for MySQL-compatible
// databases.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/myr-db/myr/internal/applog"
	"github.com/myr-db/myr/internal/config"
	"github.com/myr-db/myr/internal/mysqlbackend"
	"github.com/myr-db/myr/internal/profile"
	"github.com/myr-db/myr/internal/queryrunner"
	"github.com/myr-db/myr/internal/reducer"
	"github.com/myr-db/myr/internal/schema"
	"github.com/myr-db/myr/internal/supervisor"
	"github.com/myr-db/myr/internal/tui"
)

// lazyBackend defers schema/query operations to whatever *sql.DB the most
// recent connect attempt produced, since reducer.New needs a schema.Backend
// and queryrunner.Backend before any profile has actually been connected.
type lazyBackend struct {
	db func() *sql.DB
}

func (l lazyBackend) FetchSchema(ctx context.Context) (*schema.Catalog, error) {
	db := l.db()
	if db == nil {
		return nil, fmt.Errorf("myr: not connected")
	}
	return mysqlbackend.NewDataBackend(db).FetchSchema(ctx)
}

func (l lazyBackend) RunQuery(ctx context.Context, query string) (queryrunner.RowStream, error) {
	db := l.db()
	if db == nil {
		return nil, fmt.Errorf("myr: not connected")
	}
	return mysqlbackend.NewDataBackend(db).RunQuery(ctx, query)
}

func main() {
	cfg, err := config.LoadFromFlagsAndEnv(os.Args[1:])
	if err != nil {
		log.Fatalf("[myr] configuration error: %v", err)
	}

	applogger := applog.New("myr")

	var currentBackend *mysqlbackend.ConnectionBackend
	connectFactory := func(p profile.ConnectionProfile) supervisor.ConnectionBackend {
		currentBackend = mysqlbackend.NewConnectionBackend(p)
		return currentBackend
	}
	backend := lazyBackend{db: func() *sql.DB {
		if currentBackend == nil {
			return nil
		}
		return currentBackend.DB()
	}}

	model := reducer.New(connectFactory, backend, backend, cfg.SafeModeEnabled)

	program := tea.NewProgram(tui.New(model, cfg.TickRate))
	if _, err := program.Run(); err != nil {
		applogger.Errorf("program exited: %v", err)
		os.Exit(1)
	}
}
