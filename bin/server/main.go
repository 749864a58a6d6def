package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/zond/meshmush/server"
)

func main() {
	configPath := flag.String("config", "", "TOML file to load configuration from, flags override its values.")
	sshAddr := flag.String("ssh", "", "Where to listen to SSH connections.")
	dir := flag.String("dir", "", "Where to save database and settings.")
	control := flag.String("control", "", "Path of the control socket, defaults to control.sock in the data dir.")
	spawn := flag.String("spawn", "", "Room new players start in.")
	wizards := flag.String("wizards", "", "Comma separated usernames granted wizard commands.")
	logFile := flag.String("log", "", "File to also write logs to, rotated by size.")

	flag.Parse()

	config := server.DefaultConfig()
	if *configPath != "" {
		var err error
		if config, err = server.LoadConfig(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	for _, override := range []struct {
		flag  string
		field *string
	}{
		{*sshAddr, &config.SSHAddr},
		{*dir, &config.Dir},
		{*control, &config.ControlSocket},
		{*spawn, &config.SpawnRoom},
		{*logFile, &config.LogFile},
	} {
		if override.flag != "" {
			*override.field = override.flag
		}
	}
	if *wizards != "" {
		config.Wizards = strings.Split(*wizards, ",")
	}

	closer := server.SetupLogging(config)
	defer closer.Close()

	srv, err := server.New(config)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Start(ctx); err != nil {
		log.Fatal(err)
	}
}
