package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/bnema/transq/internal/domain"
	"github.com/bnema/transq/internal/infrastructure/logger"
	"github.com/bnema/transq/internal/port"
)

type QuotaReport struct {
	TotalBefore int64
	TotalAfter  int64
	Evicted     []string
}

// QuotaManager keeps a content store under a size cap by evicting the oldest
// entries first.
type QuotaManager struct {
	store port.ContentStore
}

func NewQuotaManager(store port.ContentStore) *QuotaManager {
	return &QuotaManager{store: store}
}

// Enforce deletes the oldest entries until the store holds at most capBytes.
// A cap of zero or less disables the check. Entries that vanish before they
// can be deleted count as freed; other delete failures are skipped.
func (q *QuotaManager) Enforce(ctx context.Context, capBytes int64) (QuotaReport, error) {
	var report QuotaReport
	if capBytes <= 0 {
		return report, nil
	}

	objects, err := q.store.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list content store: %w", err)
	}

	for _, obj := range objects {
		report.TotalBefore += obj.Size
	}
	report.TotalAfter = report.TotalBefore
	if report.TotalBefore <= capBytes {
		return report, nil
	}

	logger.Info.Printf("storage %s exceeds cap %s, evicting oldest outputs",
		humanize.IBytes(uint64(report.TotalBefore)), humanize.IBytes(uint64(capBytes)))

	sort.SliceStable(objects, func(i, j int) bool {
		if objects[i].Modified.Equal(objects[j].Modified) {
			return objects[i].Name < objects[j].Name
		}
		return objects[i].Modified.Before(objects[j].Modified)
	})

	var failed int
	for _, obj := range objects {
		if report.TotalAfter <= capBytes {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		err := q.store.Delete(ctx, obj.Name)
		switch {
		case err == nil:
			report.Evicted = append(report.Evicted, obj.Name)
			logger.Info.Printf("evicted %s (%s)", logger.SanitizeForLog(obj.Name), humanize.IBytes(uint64(obj.Size)))
		case errors.Is(err, domain.ErrNotFound):
			logger.Debug.Printf("%s already gone", logger.SanitizeForLog(obj.Name))
		default:
			failed++
			logger.Warn.Printf("failed to evict %s: %v", logger.SanitizeForLog(obj.Name), err)
			continue
		}
		report.TotalAfter -= obj.Size
	}

	if failed > 0 && report.TotalAfter > capBytes {
		return report, fmt.Errorf("still %s over cap after %d failed deletions",
			humanize.IBytes(uint64(report.TotalAfter-capBytes)), failed)
	}
	return report, nil
}
