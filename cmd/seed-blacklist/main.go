// Command seed-blacklist bulk-imports trade-blacklist entries from an xlsx
// spreadsheet (one steam_id, reason, added_by per row) into the
// blacklist_entries table, and invalidates any cached negatives in redis so
// the import takes effect immediately instead of after the cache ttl.
package main

import (
	"context"
	"flag"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"steammatch/internal/blacklist"
	"steammatch/internal/models"
)

func main() {
	xlsxPath := flag.String("file", "", "path to the blacklist xlsx file")
	databaseURL := flag.String("database-url", "", "mysql DSN")
	redisAddr := flag.String("redis-addr", "localhost:6379", "redis address")
	sheet := flag.String("sheet", "Sheet1", "worksheet name")
	flag.Parse()

	if *xlsxPath == "" || *databaseURL == "" {
		log.Fatal("usage: seed-blacklist -file blacklist.xlsx -database-url <dsn>")
	}

	db, err := gorm.Open(mysql.Open(*databaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
	cache := blacklist.New(db, rdb, time.Hour)

	f, err := excelize.OpenFile(*xlsxPath)
	if err != nil {
		log.Fatalf("opening %s: %v", *xlsxPath, err)
	}
	defer f.Close()

	rows, err := f.GetRows(*sheet)
	if err != nil {
		log.Fatalf("reading sheet %s: %v", *sheet, err)
	}

	ctx := context.Background()
	imported := 0
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue // header row
		}
		steamID, err := strconv.ParseUint(row[0], 10, 64)
		if err != nil {
			log.Printf("row %d: skipping invalid steam_id %q: %v", i+1, row[0], err)
			continue
		}
		reason := ""
		if len(row) > 1 {
			reason = row[1]
		}
		addedBy := ""
		if len(row) > 2 {
			addedBy = row[2]
		}

		entry := models.BlacklistEntry{SteamID: steamID, Reason: reason, AddedBy: addedBy}
		if err := db.Where("steam_id = ?", steamID).
			Assign(entry).
			FirstOrCreate(&entry).Error; err != nil {
			log.Printf("row %d: upserting steam_id %d: %v", i+1, steamID, err)
			continue
		}
		cache.Invalidate(ctx, steamID)
		imported++
	}

	log.Printf("imported %d blacklist entries from %s", imported, *xlsxPath)
}
