package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gorm.io/gorm"

	"blgu-assess-go/internal/indicator"
	"blgu-assess-go/internal/repository"
	"blgu-assess-go/internal/service"
	"blgu-assess-go/pkg/log"
)

// seedFile is one initdata/*.json document: a snapshot with an optional
// title. The file name stands in for a missing title.
type seedFile struct {
	Title string `json:"title"`
	indicator.Snapshot
}

// initSeedDrafts imports every JSON snapshot under dir as a draft owned by
// "admin", or the first user when there is none. Titles already present are
// skipped, so restarts are idempotent. It returns how many drafts it created.
func initSeedDrafts(ctx context.Context, dir string, userRepo repository.UserRepository, draftRepo repository.DraftRepository, builder service.BuilderService) int {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("initSeedDrafts: directory '%s' missing, nothing to import", dir)
		return 0
	}

	owner, err := userRepo.FindByUsername("admin")
	if err != nil {
		users, ferr := userRepo.FindAll()
		if ferr != nil || len(users) == 0 {
			log.Warnf("initSeedDrafts: no user to own seeded drafts, skipping")
			return 0
		}
		owner = &users[0]
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		log.Warnf("initSeedDrafts: %v", err)
		return 0
	}
	sort.Strings(paths)

	created := 0
	for _, path := range paths {
		if ctx.Err() != nil {
			return created
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("initSeedDrafts: read %s: %v", path, err)
			continue
		}
		var seed seedFile
		if err := json.Unmarshal(raw, &seed); err != nil {
			log.Warnf("initSeedDrafts: decode %s: %v", path, err)
			continue
		}
		if seed.Title == "" {
			seed.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}

		if _, err := draftRepo.FindByTitle(ctx, seed.Title); err == nil {
			log.Infof("initSeedDrafts: '%s' already imported, skipping", seed.Title)
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("initSeedDrafts: lookup '%s': %v", seed.Title, err)
			continue
		}

		draft, err := builder.ImportDraft(ctx, seed.Title, seed.Snapshot, owner)
		if err != nil {
			log.Warnf("initSeedDrafts: import %s: %v", path, err)
			continue
		}
		created++
		log.Infow("initSeedDrafts: imported", "title", draft.Title, "draftId", draft.ID, "ownerId", owner.ID)
	}
	return created
}
