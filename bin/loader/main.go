package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/zond/meshmush/loader"
	"github.com/zond/meshmush/storage"
)

func main() {
	dir := flag.String("dir", filepath.Join(os.Getenv("HOME"), ".meshmush"), "Where to save database and settings.")
	dataPath := flag.String("data", "", "Path to load JSON from.")
	doRestore := flag.Bool("restore", false, "XOR 'backup': Whether to load data from the data path to the database dir.")
	doBackup := flag.Bool("backup", false, "XOR 'restore': Whether to load data from the database dir to the data path.")

	flag.Parse()

	if *dataPath == "" || (*doRestore == *doBackup) {
		flag.Usage()
		return
	}

	ctx := context.Background()
	store, err := storage.New(ctx, *dir)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	if *doRestore {
		f, err := os.Open(*dataPath)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		w, err := loader.Restore(ctx, store, f)
		if err != nil {
			log.Fatalf("restoring %q: %v", *dataPath, err)
		}
		log.Printf("Restored %d players, %d rooms and %d objects", len(w.Players), len(w.Rooms), len(w.Objects))
	}
	if *doBackup {
		f, err := os.OpenFile(*dataPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		w, err := loader.Backup(ctx, store, f)
		if err != nil {
			log.Fatalf("backing up to %q: %v", *dataPath, err)
		}
		log.Printf("Backed up %d players, %d rooms and %d objects", len(w.Players), len(w.Rooms), len(w.Objects))
	}
}
