// mautrix-tinode - Tinode chat list and contact presentation core.
// Copyright (C) 2026 mautrix-tinode contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"
	"go.mau.fi/util/exerrors"
	"go.mau.fi/util/exzerolog"
	flag "maunium.net/go/mauflag"

	"go.mau.fi/mautrix-tinode/config"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/avatar"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/chatlist"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/store"
)

var configPath = flag.MakeFull("c", "config", "The path to your config file.", "config.yaml").String()
var generateConfig = flag.MakeFull("g", "generate-config", "Generate an example config file and exit.", "false").Bool()
var wantHelp, _ = flag.MakeHelpFlag()

func main() {
	flag.SetHelpTitles(
		"mautrix-tinode - Tinode chat list and contact presentation core.",
		"mautrix-tinode [-hg] [-c <path>] [serve | render <file> | vcard <file> <topic>]",
	)
	err := flag.Parse()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		flag.PrintHelp()
		os.Exit(1)
	} else if *wantHelp {
		flag.PrintHelp()
		os.Exit(0)
	} else if *generateConfig {
		exerrors.PanicIfNotNil(config.Generate(*configPath))
		fmt.Println("Wrote example config to", *configPath)
		os.Exit(0)
	}

	cfg := exerrors.Must(config.Load(*configPath, true))
	log := exerrors.Must(cfg.Logging.Compile())
	exzerolog.SetupDefaults(log)
	ctx := log.WithContext(context.Background())

	args := flag.Args()
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}
	switch command {
	case "serve":
		err = serve(ctx, cfg, log)
	case "render":
		err = cmdRender(ctx, cfg, os.Stdout, args)
	case "vcard":
		err = cmdVCard(ctx, os.Stdout, args)
	default:
		err = fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		log.Err(err).Str("command", command).Msg("Command failed")
		os.Exit(2)
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zerolog.Logger) error {
	db, err := dbutil.NewFromConfig("mautrix-tinode", cfg.Database, dbutil.ZeroLogger(log.With().Str("db_section", "main").Logger()))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	container := store.NewStore(db, dbutil.ZeroLogger(log.With().Str("db_section", "tinodemeow").Logger()))
	if err = container.Upgrade(ctx); err != nil {
		return fmt.Errorf("failed to upgrade database: %w", err)
	}

	metrics := NewMetricsHandler(cfg.Metrics.Listen, log.With().Str("component", "metrics").Logger(), container.Chats)
	if cfg.Metrics.Enabled {
		go metrics.Start()
		defer metrics.Stop()
	}

	resolver := newResolver(cfg)
	resolver.Observer = metrics
	var prefetcher *avatar.Prefetcher
	if cfg.Avatars.AsyncDecode {
		prefetcher = &avatar.Prefetcher{Workers: cfg.Avatars.DecodeWorkers, Observer: metrics}
	}
	updates := NewUpdateHub(log.With().Str("component", "updates").Logger(), metrics)
	list := chatlist.New(log.With().Str("component", "chatlist").Logger(), updates, resolver, prefetcher)
	defer list.Close()
	list.Observer = metrics
	if cfg.ChatList.UnknownTitle != "" {
		list.UnknownTitle = cfg.ChatList.UnknownTitle
	}

	session := tinodemeow.NewSession(list, container.Chats)
	if err = session.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to restore stored chat list")
	}

	api := NewChatAPI(log.With().Str("component", "api").Logger(), session, updates, cfg.API.SharedSecret, cfg.Avatars.RenderSize)
	server := &http.Server{
		Addr:              cfg.API.Listen,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.API.Listen).Msg("Starting API server")
		serverErr <- server.ListenAndServe()
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	select {
	case <-c:
		log.Info().Msg("Interrupt received, stopping...")
	case err = <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server failed: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
