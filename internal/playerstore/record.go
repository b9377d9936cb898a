// Package playerstore persists per-player pull balances, pity counters and
// guarantee flags.
package playerstore

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/xtding233/gacha-engine/internal/gacha"
)

// Flat projection key parts.
const (
	keyPulls     = "Pulls"
	keyPityMap   = "Pity-Map"
	keyGuarantee = "LimitedBannerGuarantee"
)

// BannerRecord is the persisted state for one banner.
type BannerRecord struct {
	Pulls                  int
	PityMap                map[string]int
	LimitedBannerGuarantee *bool
}

// Record is the persisted state for one player, keyed by banner UUID.
type Record struct {
	Player  uuid.UUID
	Banners map[uuid.UUID]BannerRecord
}

// Store loads and saves player records.
type Store interface {
	// Load returns the player's record; ok is false when nothing is stored.
	Load(ctx context.Context, player uuid.UUID) (rec Record, ok bool, err error)
	// Save replaces the stored records of every player in recs.
	Save(ctx context.Context, recs []Record) error
	Close() error
}

// FromSnapshot converts engine state into a record.
func FromSnapshot(s gacha.PlayerSnapshot) Record {
	rec := Record{Player: s.Player, Banners: make(map[uuid.UUID]BannerRecord, len(s.Banners))}
	for id, bp := range s.Banners {
		br := BannerRecord{Pulls: bp.Pulls, PityMap: maps.Clone(bp.Pity)}
		if bp.Guaranteed != nil {
			v := *bp.Guaranteed
			br.LimitedBannerGuarantee = &v
		}
		rec.Banners[id] = br
	}
	return rec
}

// Flatten projects a record into "<banner>.Pulls",
// "<banner>.Pity-Map.<tier>" and "<banner>.LimitedBannerGuarantee" keys.
func Flatten(rec Record) map[string]string {
	out := make(map[string]string)
	for id, br := range rec.Banners {
		prefix := id.String() + "."
		out[prefix+keyPulls] = strconv.Itoa(br.Pulls)
		for tier, n := range br.PityMap {
			out[prefix+keyPityMap+"."+tier] = strconv.Itoa(n)
		}
		if br.LimitedBannerGuarantee != nil {
			out[prefix+keyGuarantee] = strconv.FormatBool(*br.LimitedBannerGuarantee)
		}
	}
	return out
}

// Unflatten rebuilds a record from its flat projection. Keys or values
// that cannot be parsed are skipped and returned in sorted order; the rest
// of the record still loads.
func Unflatten(player uuid.UUID, flat map[string]string) (Record, []string) {
	rec := Record{Player: player, Banners: make(map[uuid.UUID]BannerRecord)}
	var skipped []string
	for _, key := range slices.Sorted(maps.Keys(flat)) {
		val := strings.TrimSpace(flat[key])
		bannerPart, field, ok := strings.Cut(key, ".")
		id, err := uuid.Parse(bannerPart)
		if !ok || err != nil {
			skipped = append(skipped, key)
			continue
		}
		br := rec.Banners[id]
		switch {
		case field == keyPulls:
			n, err := strconv.Atoi(val)
			if err != nil {
				skipped = append(skipped, key)
				continue
			}
			br.Pulls = n
		case strings.HasPrefix(field, keyPityMap+"."):
			tier := strings.TrimPrefix(field, keyPityMap+".")
			n, err := strconv.Atoi(val)
			if err != nil || tier == "" {
				skipped = append(skipped, key)
				continue
			}
			if br.PityMap == nil {
				br.PityMap = make(map[string]int)
			}
			br.PityMap[strings.ToLower(tier)] = n
		case field == keyGuarantee:
			v, err := strconv.ParseBool(val)
			if err != nil {
				skipped = append(skipped, key)
				continue
			}
			br.LimitedBannerGuarantee = &v
		default:
			skipped = append(skipped, key)
			continue
		}
		rec.Banners[id] = br
	}
	return rec, skipped
}
