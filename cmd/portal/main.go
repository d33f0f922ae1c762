package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"

	"github.com/mealpoint/portal/authapi"
	"github.com/mealpoint/portal/guard"
	"github.com/mealpoint/portal/internal/config"
	"github.com/mealpoint/portal/server"
	"github.com/mealpoint/portal/session"
	"github.com/mealpoint/portal/session/tokenstore"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running portal: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Portal stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	store, err := newSessionStore(c)
	if err != nil {
		return fmt.Errorf("newSessionStore: %w", err)
	}

	sessions, err := session.NewManager(store)
	if err != nil {
		return fmt.Errorf("session.NewManager: %w", err)
	}
	if err := sessions.Hydrate(); err != nil {
		return fmt.Errorf("sessions.Hydrate: %w", err)
	}

	api, err := authapi.NewClient(c.GetBackendBaseURL(), func() string {
		return sessions.Current().Token
	})
	if err != nil {
		return fmt.Errorf("authapi.NewClient: %w", err)
	}

	routeGuard, err := newRouteGuard(c)
	if err != nil {
		return fmt.Errorf("newRouteGuard: %w", err)
	}

	portalServer, err := server.New(c, sessions, api, routeGuard)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: portalServer}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func newSessionStore(c config.Config) (tokenstore.Store, error) {
	switch c.GetSessionStore() {
	case config.SessionStoreSQLite:
		path := "session.db"
		if folder := c.GetDataFolder(); folder != "" {
			path = filepath.Join(folder, "session.db")
		}
		return tokenstore.NewSQLiteStore(path)
	case config.SessionStoreFile:
		var path string
		if folder := c.GetDataFolder(); folder != "" {
			path = filepath.Join(folder, "session.json")
		}
		return tokenstore.NewFileStore(path)
	default:
		return nil, fmt.Errorf("unknown session store kind %q", c.GetSessionStore())
	}
}

func newRouteGuard(c config.Config) (*guard.Guard, error) {
	routesFile := c.GetRoutesFile()
	if routesFile == "" {
		return guard.New(nil), nil
	}
	table, err := guard.LoadTable(routesFile)
	if err != nil {
		return nil, fmt.Errorf("guard.LoadTable: %w", err)
	}
	return guard.New(table), nil
}

func listenAndServe(server *http.Server) error {
	log.Printf("Portal listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
