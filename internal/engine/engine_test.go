package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/gacha-engine/internal/bannercfg"
	"github.com/xtding233/gacha-engine/internal/gacha"
	"github.com/xtding233/gacha-engine/internal/host"
	"github.com/xtding233/gacha-engine/internal/playerstore"
)

const (
	wishID  = "5f0c8a4e-3a71-4a43-9a57-1f1f4a2b9c10"
	quickID = "0b6c3f9e-2f0e-4c55-8a44-3c8c3b3e7d11"
)

const bannersYAML = `
Crates:
  Wish:
    UUID: 5f0c8a4e-3a71-4a43-9a57-1f1f4a2b9c10
    Animation-Type: interface
    Is-Limited-5050-Banner: true
    Featured-5Star-Reward-Names: [crown]
    Reward-Tiers:
      common:
        Chance: 90
        Rewards:
          stick: {Chance: 100, Items: ["STICK 4"]}
      rare:
        Chance: 9
        Pity: true
        Pity-Limit: 5
        Rewards:
          emerald: {Chance: 100, Commands: ["give %player% emerald 1"]}
      five-star:
        Chance: 1
        Pity: true
        Pity-Limit: 10
        Rewards:
          crown: {Chance: 50, Items: ["NETHER_STAR 1"]}
          sword: {Chance: 50, Items: ["DIAMOND_SWORD 1"]}
    Locations:
      - world 10 64 -3
  Quick:
    UUID: 0b6c3f9e-2f0e-4c55-8a44-3c8c3b3e7d11
    Animation-Type: none
    Reward-Tiers:
      common:
        Chance: 100
        Rewards:
          apple: {Chance: 100, Items: ["APPLE 1"]}
`

var altar = gacha.Location{World: "world", X: 10, Y: 64, Z: -3}

type harness struct {
	eng   *Engine
	host  *host.Memory
	store *playerstore.FileStore
	ctx   context.Context
}

func buildBanners(t *testing.T, src string) []*gacha.Banner {
	t.Helper()
	doc, err := bannercfg.Parse([]byte(src))
	require.NoError(t, err)
	banners, _ := bannercfg.Build(doc)
	return banners
}

// runEngine runs eng's loop until the test ends.
func runEngine(t *testing.T, eng *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := playerstore.OpenFile(filepath.Join(t.TempDir(), "players.yml"), nil)
	require.NoError(t, err)
	h := host.NewMemory(64, nil)
	eng := New(Options{
		Banners:  buildBanners(t, bannersYAML),
		Store:    store,
		Host:     h,
		RNG:      gacha.NewSeededRNG(7),
		MaxPulls: 10,
	})
	runEngine(t, eng)
	return &harness{eng: eng, host: h, store: store, ctx: context.Background()}
}

// join connects a player and gives them pulls on a banner.
func (h *harness) join(t *testing.T, name, banner string, pulls int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	h.host.Connect(id, name)
	require.NoError(t, h.eng.Join(h.ctx, id))
	if pulls > 0 {
		_, err := h.eng.SetBalance(h.ctx, id, banner, pulls)
		require.NoError(t, err)
	}
	return id
}

func granted(t *testing.T, h *harness, id uuid.UUID) int {
	t.Helper()
	p, ok := h.host.Player(id)
	require.True(t, ok)
	return len(p.Inventory()) + len(p.Dropped())
}

func TestOpenRequiresBalance(t *testing.T) {
	h := newHarness(t)
	id := h.join(t, "Steve", "Wish", 0)
	_, err := h.eng.Open(h.ctx, OpenRequest{Player: id, Banner: "Wish", Count: 1})
	assert.ErrorIs(t, err, ErrNotEnoughPulls)

	_, err = h.eng.Session(h.ctx, id)
	assert.ErrorIs(t, err, gacha.ErrNoSession)
}

func TestOpenCountBounds(t *testing.T) {
	h := newHarness(t)
	id := h.join(t, "Steve", "Wish", 50)
	for _, n := range []int{0, -1, 11} {
		_, err := h.eng.Open(h.ctx, OpenRequest{Player: id, Banner: "Wish", Count: n})
		assert.ErrorIs(t, err, ErrInvalidCount, "count %d", n)
	}
	bal, err := h.eng.Balance(h.ctx, id, "wish")
	require.NoError(t, err)
	assert.Equal(t, 50, bal)
}

func TestOpenUnknownBanner(t *testing.T) {
	h := newHarness(t)
	id := h.join(t, "Steve", "Wish", 1)
	_, err := h.eng.Open(h.ctx, OpenRequest{Player: id, Banner: "Nope", Count: 1})
	assert.ErrorIs(t, err, ErrUnknownBanner)
	_, err = h.eng.Open(h.ctx, OpenRequest{Player: id, Count: 1})
	assert.ErrorIs(t, err, ErrUnknownBanner)
}

func TestInteractOpenRevealComplete(t *testing.T) {
	h := newHarness(t)
	id := h.join(t, "Steve", "Wish", 10)

	view, err := h.eng.Interact(h.ctx, id, altar)
	require.NoError(t, err)
	assert.Equal(t, gacha.PhaseInactive, view.Phase)
	_, err = h.eng.Reveal(h.ctx, id, 0)
	assert.ErrorIs(t, err, gacha.ErrPhaseTransition)

	res, err := h.eng.Open(h.ctx, OpenRequest{Player: id, Count: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Balance)
	assert.False(t, res.Plan.Immediate)
	assert.Equal(t, gacha.AnimationInterface, res.Plan.Style)
	assert.Equal(t, gacha.PhaseOpening, res.Session.Phase)
	assert.Equal(t, 10, res.Session.Slots)
	require.NotNil(t, res.Session.Location)
	assert.Equal(t, altar, *res.Session.Location)
	assert.Empty(t, res.Results)

	b, err := h.eng.BannerAt(h.ctx, altar)
	require.NoError(t, err)
	assert.Equal(t, []gacha.Location{altar}, b.InUse)

	var items, commands int
	for i := range 10 {
		r, err := h.eng.Reveal(h.ctx, id, i)
		require.NoError(t, err)
		assert.Equal(t, i, r.Index)
		switch r.Reward.Name() {
		case "emerald":
			commands++
		default:
			items++
		}
	}
	_, err = h.eng.Reveal(h.ctx, id, 10)
	assert.ErrorIs(t, err, gacha.ErrSlotOutOfRange)
	assert.Equal(t, 0, granted(t, h, id), "nothing granted before completion")

	done, err := h.eng.Complete(h.ctx, id)
	require.NoError(t, err)
	assert.Len(t, done, 10)
	assert.Equal(t, items, granted(t, h, id))
	assert.Len(t, h.host.Commands(), commands)

	_, err = h.eng.Session(h.ctx, id)
	assert.ErrorIs(t, err, gacha.ErrNoSession)
	_, err = h.eng.Complete(h.ctx, id)
	assert.True(t, gacha.IsUnknown(err))

	b, err = h.eng.BannerAt(h.ctx, altar)
	require.NoError(t, err)
	assert.Empty(t, b.InUse)
}

func TestLockedLocationRefusesOthers(t *testing.T) {
	h := newHarness(t)
	a := h.join(t, "A", "Wish", 1)
	b := h.join(t, "B", "Wish", 1)

	_, err := h.eng.Open(h.ctx, OpenRequest{Player: a, Banner: "Wish", Count: 1, Location: &altar})
	require.NoError(t, err)

	_, err = h.eng.Interact(h.ctx, b, altar)
	assert.ErrorIs(t, err, gacha.ErrLocationInUse)
	_, err = h.eng.Open(h.ctx, OpenRequest{Player: b, Banner: "Wish", Count: 1, Location: &altar})
	assert.ErrorIs(t, err, gacha.ErrLocationInUse)
	bal, _ := h.eng.Balance(h.ctx, b, "Wish")
	assert.Equal(t, 1, bal, "nothing debited when the lock is refused")

	_, err = h.eng.Abandon(h.ctx, a)
	require.NoError(t, err)
	_, err = h.eng.Interact(h.ctx, b, altar)
	assert.NoError(t, err)
}

func TestSecondOpenWhileOpeningRefused(t *testing.T) {
	h := newHarness(t)
	id := h.join(t, "Steve", "Wish", 5)
	_, err := h.eng.Open(h.ctx, OpenRequest{Player: id, Banner: "Wish", Count: 1})
	require.NoError(t, err)
	_, err = h.eng.Open(h.ctx, OpenRequest{Player: id, Banner: "Wish", Count: 1})
	assert.ErrorIs(t, err, gacha.ErrSessionOpening)
	bal, _ := h.eng.Balance(h.ctx, id, "Wish")
	assert.Equal(t, 4, bal)
}

func TestOpenWhileOpeningRefusedBeforeBalanceCheck(t *testing.T) {
	h := newHarness(t)
	id := h.join(t, "Steve", "Wish", 1)
	_, err := h.eng.Open(h.ctx, OpenRequest{Player: id, Banner: "Wish", Count: 1})
	require.NoError(t, err)

	_, err = h.eng.Open(h.ctx, OpenRequest{Player: id, Banner: "Wish", Count: 1})
	assert.ErrorIs(t, err, gacha.ErrSessionOpening)
	assert.NotErrorIs(t, err, ErrNotEnoughPulls)
	_, err = h.eng.Open(h.ctx, OpenRequest{Player: id, Banner: "Wish", Count: 0})
	assert.ErrorIs(t, err, gacha.ErrSessionOpening)
}

func TestImmediateBannerCompletes(t *testing.T) {
	h := newHarness(t)
	id := h.join(t, "Steve", "Quick", 3)
	res, err := h.eng.Open(h.ctx, OpenRequest{Player: id, Banner: quickID, Count: 3})
	require.NoError(t, err)
	assert.True(t, res.Plan.Immediate)
	assert.Equal(t, gacha.PhaseComplete, res.Session.Phase)
	require.Len(t, res.Results, 3)
	assert.Equal(t, 3, granted(t, h, id))

	_, err = h.eng.Session(h.ctx, id)
	assert.ErrorIs(t, err, gacha.ErrNoSession)
}

func TestLeaveGrantsAndPersists(t *testing.T) {
	h := newHarness(t)
	id := h.join(t, "Steve", "Quick", 0)
	_, err := h.eng.SetBalance(h.ctx, id, "Wish", 7)
	require.NoError(t, err)
	res, err := h.eng.Open(h.ctx, OpenRequest{Player: id, Banner: "Wish", Count: 4})
	require.NoError(t, err)
	require.Equal(t, 3, res.Balance)

	before, err := h.eng.Balances(h.ctx, id)
	require.NoError(t, err)

	require.NoError(t, h.eng.Leave(h.ctx, id))
	p, _ := h.host.Player(id)
	assert.NotZero(t, len(p.Inventory())+len(p.Dropped())+len(h.host.Commands()), "abandoned session still granted")

	rec, ok, err := h.store.Load(h.ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, rec.Banners[uuid.MustParse(wishID)].Pulls)

	require.NoError(t, h.eng.Join(h.ctx, id))
	after, err := h.eng.Balances(h.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestJoinSkipsMalformedProgress(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	ghost := uuid.New()
	wish := uuid.MustParse(wishID)
	yes := true
	require.NoError(t, h.store.Save(h.ctx, []playerstore.Record{{
		Player: id,
		Banners: map[uuid.UUID]playerstore.BannerRecord{
			wish: {
				Pulls:                  4,
				PityMap:                map[string]int{"rare": 3, "five-star": 12, "legendary": 1, "common": 2},
				LimitedBannerGuarantee: &yes,
			},
			uuid.MustParse(quickID): {Pulls: -2},
			ghost:                   {Pulls: 9},
		},
	}}))
	h.host.Connect(id, "Steve")
	require.NoError(t, h.eng.Join(h.ctx, id))

	views, err := h.eng.Balances(h.ctx, id)
	require.NoError(t, err)
	require.Len(t, views, 2)
	byName := map[string]BalanceView{}
	for _, v := range views {
		byName[v.Banner] = v
	}
	assert.Equal(t, 4, byName["Wish"].Pulls)
	assert.Equal(t, map[string]int{"rare": 3, "five-star": 0}, byName["Wish"].Pity)
	assert.True(t, byName["Wish"].Guaranteed)
	assert.Equal(t, 0, byName["Quick"].Pulls)

	// progress for the unknown banner survives a save
	_, err = h.eng.GiveBalance(h.ctx, id, "Wish", 1)
	require.NoError(t, err)
	n, err := h.eng.Flush(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	rec, _, err := h.store.Load(h.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 9, rec.Banners[ghost].Pulls)
	assert.Equal(t, 5, rec.Banners[wish].Pulls)
}

func TestBalanceClamps(t *testing.T) {
	h := newHarness(t)
	id := h.join(t, "Steve", "Wish", 5)
	n, err := h.eng.TakeBalance(h.ctx, id, "Wish", 8)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	n, err = h.eng.GiveBalance(h.ctx, id, "Wish", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = h.eng.GiveBalance(h.ctx, id, "Wish", -1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = h.eng.SetBalance(h.ctx, id, "Missing", 1)
	assert.ErrorIs(t, err, ErrUnknownBanner)
}

func TestGiveAllOnlyOnline(t *testing.T) {
	h := newHarness(t)
	a := h.join(t, "A", "Wish", 0)
	h.join(t, "B", "Wish", 0)
	c := h.join(t, "C", "Wish", 0)
	h.host.Disconnect(c)

	n, err := h.eng.GiveAll(h.ctx, "Wish", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	bal, _ := h.eng.Balance(h.ctx, a, "Wish")
	assert.Equal(t, 3, bal)
	bal, _ = h.eng.Balance(h.ctx, c, "Wish")
	assert.Equal(t, 0, bal)
}

func TestFlushWritesDirtyOnce(t *testing.T) {
	h := newHarness(t)
	h.join(t, "A", "Wish", 2)
	n, err := h.eng.Flush(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = h.eng.Flush(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLocationAdmin(t *testing.T) {
	h := newHarness(t)
	spot := gacha.Location{World: "world", X: 0, Y: 70, Z: 0}

	err := h.eng.AddLocation(h.ctx, "Quick", altar)
	assert.ErrorIs(t, err, ErrLocationTaken)

	require.NoError(t, h.eng.AddLocation(h.ctx, "Quick", spot))
	b, err := h.eng.BannerAt(h.ctx, spot)
	require.NoError(t, err)
	assert.Equal(t, "Quick", b.Name)

	require.NoError(t, h.eng.RemoveLocation(h.ctx, "Quick", spot))
	assert.ErrorIs(t, h.eng.RemoveLocation(h.ctx, "Quick", spot), ErrLocationNotBound)
	_, err = h.eng.BannerAt(h.ctx, spot)
	assert.ErrorIs(t, err, ErrNoBannerAt)
}

func TestRemoveLocationInUse(t *testing.T) {
	h := newHarness(t)
	id := h.join(t, "A", "Wish", 1)
	_, err := h.eng.Open(h.ctx, OpenRequest{Player: id, Count: 1, Location: &altar})
	require.NoError(t, err)
	assert.ErrorIs(t, h.eng.RemoveLocation(h.ctx, "Wish", altar), gacha.ErrLocationInUse)
}

func TestReloadDeferredWhileOpening(t *testing.T) {
	h := newHarness(t)
	id := h.join(t, "A", "Wish", 1)
	_, err := h.eng.Open(h.ctx, OpenRequest{Player: id, Banner: "Wish", Count: 1})
	require.NoError(t, err)

	doc, err := bannercfg.Parse([]byte(`
Crates:
  Wish:
    UUID: 5f0c8a4e-3a71-4a43-9a57-1f1f4a2b9c10
    Animation-Type: none
    Reward-Tiers:
      common:
        Chance: 100
        Rewards:
          stick: {Chance: 100}
`))
	require.NoError(t, err)
	res, err := h.eng.ReloadBanners(h.ctx, doc)
	require.NoError(t, err)
	assert.True(t, res.Deferred)
	assert.Equal(t, 1, res.Banners)

	all, err := h.eng.Banners(h.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "old catalog stays while a session is opening")

	_, err = h.eng.Complete(h.ctx, id)
	require.NoError(t, err)
	all, err = h.eng.Banners(h.ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "NONE", all[0].Animation)

	// balance survives the reload because it is keyed by banner UUID
	_, err = h.eng.GiveBalance(h.ctx, id, "Wish", 2)
	require.NoError(t, err)
	bal, _ := h.eng.Balance(h.ctx, id, wishID)
	assert.Equal(t, 2, bal)
}

func TestReloadWithoutLoader(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Reload(h.ctx)
	assert.ErrorIs(t, err, ErrNoBannerFile)
	assert.ErrorIs(t, h.eng.SaveBanners(h.ctx), ErrNoBannerFile)
}

func TestDropRates(t *testing.T) {
	h := newHarness(t)
	rates, err := h.eng.DropRates(h.ctx, "wish")
	require.NoError(t, err)
	require.Len(t, rates, 3)
	assert.Equal(t, "five-star", rates[0].Tier)
	assert.InDelta(t, 1.0, rates[0].Percent, 1e-9)
	assert.Equal(t, "common", rates[2].Tier)
}

func TestSimulate(t *testing.T) {
	h := newHarness(t)
	rep, err := h.eng.Simulate(h.ctx, "Wish", gacha.SimParams{Trials: 200, PullsPerTrial: 20}, 42)
	require.NoError(t, err)
	assert.Equal(t, 4000, rep.Pulls)
	assert.Equal(t, "five-star", rep.TopTier)
	assert.Equal(t, rep.TopHits, rep.Featured+rep.Lost)

	_, err = h.eng.Simulate(h.ctx, "Wish", gacha.SimParams{Trials: 0, PullsPerTrial: 1}, 0)
	assert.ErrorIs(t, err, ErrInvalidCount)
	_, err = h.eng.Simulate(h.ctx, "Wish", gacha.SimParams{Trials: MaxSimulationPulls, PullsPerTrial: 2}, 0)
	assert.ErrorIs(t, err, ErrSimulationTooBig)
}
