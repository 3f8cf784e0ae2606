package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"firewatch/internal/model"
	"firewatch/internal/repository/sqlite"
	"firewatch/internal/service/ai"
	"firewatch/internal/service/storage"
)

// reindex rebuilds the snapshot tables from the files in the snapshot
// directory. Boxes and scores are not recoverable from file names, so only
// labels are restored.
func main() {
	snapshotDir := flag.String("snapshots", "data/snapshots", "Directory containing snapshots")
	dbPath := flag.String("db", "data/firewatch.db", "Database path")
	flag.Parse()

	fmt.Printf("Reindexing snapshots from %s into %s\n", *snapshotDir, *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewSnapshotRepository(db)

	files, err := os.ReadDir(*snapshotDir)
	if err != nil {
		log.Fatalf("Failed to read snapshot directory: %v", err)
	}

	if err := repo.DeleteAll(); err != nil {
		log.Fatalf("Failed to clear snapshot records: %v", err)
	}

	inserted, skipped := 0, 0
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".jpg" {
			continue
		}

		timestamp, source, labels, err := storage.ParseSnapshotName(file.Name())
		if err != nil {
			log.Printf("Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		info, err := file.Info()
		if err != nil {
			log.Printf("Failed to get info for %s: %v", file.Name(), err)
			skipped++
			continue
		}

		dets := make([]ai.Detection, 0, len(labels))
		for _, l := range labels {
			dets = append(dets, ai.Detection{Label: l})
		}

		snap := &model.Snapshot{
			Filename:  file.Name(),
			Source:    source,
			Timestamp: timestamp,
			FilePath:  filepath.Join(*snapshotDir, file.Name()),
			FileSize:  info.Size(),
		}
		if _, err := repo.Insert(snap, dets); err != nil {
			log.Fatalf("Failed to insert %s: %v", file.Name(), err)
		}
		inserted++
	}

	fmt.Printf("Indexed %d snapshots\n", inserted)
	if skipped > 0 {
		fmt.Printf("Skipped %d files (invalid name or errors)\n", skipped)
	}

	size, err := repo.GetDirectorySize()
	if err == nil {
		fmt.Printf("Total size: %d bytes\n", size)
	}
}
