package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/gacha-engine/internal/bannercfg"
	"github.com/xtding233/gacha-engine/internal/gacha"
	"github.com/xtding233/gacha-engine/internal/host"
	"github.com/xtding233/gacha-engine/internal/playerstore"
)

const noIDYAML = `
Crates:
  Wish:
    Animation-Type: none
    Reward-Tiers:
      common:
        Chance: 100
        Rewards:
          stick: {Chance: 100, Items: ["STICK 1"]}
`

// gatedStore holds every Save until gate is closed.
type gatedStore struct {
	playerstore.Store
	entered chan struct{}
	gate    chan struct{}
}

func (s *gatedStore) Save(ctx context.Context, recs []playerstore.Record) error {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.gate
	return s.Store.Save(ctx, recs)
}

func writeBanners(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

// startFromFile builds and runs an engine over the banner file at path.
func startFromFile(t *testing.T, path string, store playerstore.Store, players *host.Memory) *Engine {
	t.Helper()
	loader := bannercfg.NewLoader(path)
	banners, _, err := loader.Banners()
	require.NoError(t, err)
	eng := New(Options{
		Banners:  banners,
		Loader:   loader,
		Store:    store,
		Host:     players,
		RNG:      gacha.NewSeededRNG(7),
		MaxPulls: 10,
	})
	runEngine(t, eng)
	return eng
}

func TestGeneratedBannerIDSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crates.yml")
	writeBanners(t, path, noIDYAML)
	store, err := playerstore.OpenFile(filepath.Join(dir, "players.yml"), nil)
	require.NoError(t, err)
	players := host.NewMemory(64, nil)
	id := uuid.New()
	players.Connect(id, "Steve")
	ctx := context.Background()

	first := startFromFile(t, path, store, players)
	require.NoError(t, first.Join(ctx, id))
	_, err = first.SetBalance(ctx, id, "Wish", 5)
	require.NoError(t, err)
	_, err = first.Flush(ctx)
	require.NoError(t, err)

	second := startFromFile(t, path, store, players)
	require.NoError(t, second.Join(ctx, id))
	bal, err := second.Balance(ctx, id, "Wish")
	require.NoError(t, err)
	assert.Equal(t, 5, bal)
}

func TestReloadWritesBackGeneratedID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crates.yml")
	writeBanners(t, path, bannersYAML)
	store, err := playerstore.OpenFile(filepath.Join(dir, "players.yml"), nil)
	require.NoError(t, err)
	players := host.NewMemory(64, nil)
	id := uuid.New()
	players.Connect(id, "Steve")
	ctx := context.Background()

	eng := startFromFile(t, path, store, players)
	writeBanners(t, path, bannersYAML+`
  Fresh:
    Animation-Type: none
    Reward-Tiers:
      common:
        Chance: 100
        Rewards:
          stick: {Chance: 100, Items: ["STICK 1"]}
`)
	res, err := eng.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Banners)

	require.NoError(t, eng.Join(ctx, id))
	_, err = eng.SetBalance(ctx, id, "Fresh", 4)
	require.NoError(t, err)
	_, err = eng.Flush(ctx)
	require.NoError(t, err)

	_, err = eng.Reload(ctx)
	require.NoError(t, err)
	bal, err := eng.Balance(ctx, id, "Fresh")
	require.NoError(t, err)
	assert.Equal(t, 4, bal)

	restarted := startFromFile(t, path, store, players)
	require.NoError(t, restarted.Join(ctx, id))
	bal, err = restarted.Balance(ctx, id, "Fresh")
	require.NoError(t, err)
	assert.Equal(t, 4, bal)
}

func TestReloadKeepsRuntimeLocationEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crates.yml")
	writeBanners(t, path, bannersYAML)
	eng := startFromFile(t, path, nil, host.NewMemory(64, nil))
	ctx := context.Background()
	spot := gacha.Location{World: "world", X: 1, Y: 2, Z: 3}

	require.NoError(t, eng.AddLocation(ctx, "Wish", spot))
	require.NoError(t, eng.RemoveLocation(ctx, "Wish", altar))
	_, err := eng.Reload(ctx)
	require.NoError(t, err)

	v, err := eng.BannerAt(ctx, spot)
	require.NoError(t, err)
	assert.Equal(t, "Wish", v.Name)
	_, err = eng.BannerAt(ctx, altar)
	assert.ErrorIs(t, err, ErrNoBannerAt)

	// once saved, the file carries the edits
	require.NoError(t, eng.SaveBanners(ctx))
	_, err = eng.Reload(ctx)
	require.NoError(t, err)
	v, err = eng.BannerAt(ctx, spot)
	require.NoError(t, err)
	assert.Equal(t, "Wish", v.Name)
}

func TestReloadDropsLocationBindTakenByFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crates.yml")
	writeBanners(t, path, bannersYAML)
	eng := startFromFile(t, path, nil, host.NewMemory(64, nil))
	ctx := context.Background()
	spot := gacha.Location{World: "world", X: 1, Y: 2, Z: 3}

	require.NoError(t, eng.AddLocation(ctx, "Quick", spot))
	writeBanners(t, path, strings.Replace(bannersYAML,
		"      - world 10 64 -3\n", "      - world 10 64 -3\n      - world 1 2 3\n", 1))
	_, err := eng.Reload(ctx)
	require.NoError(t, err)

	v, err := eng.BannerAt(ctx, spot)
	require.NoError(t, err)
	assert.Equal(t, "Wish", v.Name)
}

func TestRejoinWhileLeaveSaves(t *testing.T) {
	inner, err := playerstore.OpenFile(filepath.Join(t.TempDir(), "players.yml"), nil)
	require.NoError(t, err)
	store := &gatedStore{Store: inner, entered: make(chan struct{}, 1), gate: make(chan struct{})}
	players := host.NewMemory(64, nil)
	eng := New(Options{
		Banners:  buildBanners(t, bannersYAML),
		Store:    store,
		Host:     players,
		RNG:      gacha.NewSeededRNG(7),
		MaxPulls: 10,
	})
	runEngine(t, eng)
	ctx := context.Background()
	id := uuid.New()
	players.Connect(id, "Steve")
	require.NoError(t, eng.Join(ctx, id))
	_, err = eng.SetBalance(ctx, id, "Wish", 5)
	require.NoError(t, err)

	left := make(chan error, 1)
	go func() { left <- eng.Leave(ctx, id) }()
	<-store.entered

	require.NoError(t, eng.Join(ctx, id))
	bal, err := eng.Balance(ctx, id, "Wish")
	require.NoError(t, err)
	assert.Equal(t, 5, bal)

	close(store.gate)
	require.NoError(t, <-left)
	bal, err = eng.GiveBalance(ctx, id, "Wish", 1)
	require.NoError(t, err)
	assert.Equal(t, 6, bal)
	_, err = eng.Flush(ctx)
	require.NoError(t, err)

	rec, ok, err := inner.Load(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 6, rec.Banners[uuid.MustParse(wishID)].Pulls)
}
