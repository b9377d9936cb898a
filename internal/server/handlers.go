package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xtding233/gacha-engine/internal/engine"
	"github.com/xtding233/gacha-engine/internal/gacha"
)

func zapPath(r *http.Request) zap.Field { return zap.String("path", r.URL.Path) }

func zapErr(err error) zap.Field { return zap.Error(err) }

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// playerParam parses {player}. On failure the response is already written.
func playerParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "player"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrMsgInvalidPlayer)
		return uuid.Nil, false
	}
	return id, true
}

func bannerParam(r *http.Request) string { return chi.URLParam(r, "banner") }

func parseLocation(w http.ResponseWriter, s string) (gacha.Location, bool) {
	loc, err := gacha.ParseLocation(s)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return gacha.Location{}, false
	}
	return loc, true
}

// Banners

func (s *Server) handleListBanners(w http.ResponseWriter, r *http.Request) {
	views, err := s.eng.Banners(r.Context())
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	out := make([]BannerDTO, 0, len(views))
	for _, v := range views {
		out = append(out, bannerDTO(v))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBanner(w http.ResponseWriter, r *http.Request) {
	v, err := s.eng.Banner(r.Context(), bannerParam(r))
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bannerDTO(v))
}

func (s *Server) handleBannerAt(w http.ResponseWriter, r *http.Request) {
	loc, ok := parseLocation(w, r.URL.Query().Get("location"))
	if !ok {
		return
	}
	v, err := s.eng.BannerAt(r.Context(), loc)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bannerDTO(v))
}

func (s *Server) handleDropRates(w http.ResponseWriter, r *http.Request) {
	rates, err := s.eng.DropRates(r.Context(), bannerParam(r))
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dropRateDTOs(rates))
}

func (s *Server) handleAddLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationRequest
	if !decode(w, r, &req) {
		return
	}
	loc, ok := parseLocation(w, req.Location)
	if !ok {
		return
	}
	if err := s.eng.AddLocation(r.Context(), bannerParam(r), loc); err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveLocation(w http.ResponseWriter, r *http.Request) {
	loc, ok := parseLocation(w, r.URL.Query().Get("location"))
	if !ok {
		return
	}
	if err := s.eng.RemoveLocation(r.Context(), bannerParam(r), loc); err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGiveAll(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := s.eng.GiveAll(r.Context(), bannerParam(r), req.Amount)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"players": n})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if !decode(w, r, &req) {
		return
	}
	params := gacha.SimParams{Trials: req.Trials, PullsPerTrial: req.PullsPerTrial}
	rep, err := s.eng.Simulate(r.Context(), bannerParam(r), params, req.Seed)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

// Players

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r)
	if !ok {
		return
	}
	var req JoinRequest
	if !decode(w, r, &req) {
		return
	}
	if s.host != nil {
		s.host.Connect(player, req.Name)
	}
	if err := s.eng.Join(r.Context(), player); err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r)
	if !ok {
		return
	}
	err := s.eng.Leave(r.Context(), player)
	if s.host != nil {
		s.host.Disconnect(player)
	}
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r)
	if !ok {
		return
	}
	if s.host == nil {
		respondError(w, http.StatusNotImplemented, ErrMsgNoHost)
		return
	}
	p, ok := s.host.Player(player)
	if !ok || !p.Online() {
		s.respondEngineError(w, r, gacha.ErrPlayerOffline)
		return
	}
	items := func(its []gacha.Item) []ItemDTO {
		out := make([]ItemDTO, 0, len(its))
		for _, it := range its {
			out = append(out, itemDTO(it))
		}
		return out
	}
	respondJSON(w, http.StatusOK, map[string][]ItemDTO{
		"inventory": items(p.Inventory()),
		"dropped":   items(p.Dropped()),
	})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r)
	if !ok {
		return
	}
	views, err := s.eng.Balances(r.Context(), player)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	out := make([]BalanceDTO, 0, len(views))
	for _, v := range views {
		out = append(out, balanceDTO(v))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r)
	if !ok {
		return
	}
	n, err := s.eng.Balance(r.Context(), player, bannerParam(r))
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"pulls": n})
}

type balanceOp func(ctx context.Context, player uuid.UUID, ref string, n int) (int, error)

// balanceHandler serves the set, give and take endpoints.
func (s *Server) balanceHandler(op balanceOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := playerParam(w, r)
		if !ok {
			return
		}
		var req AmountRequest
		if !decode(w, r, &req) {
			return
		}
		n, err := op(r.Context(), player, bannerParam(r), req.Amount)
		if err != nil {
			s.respondEngineError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]int{"pulls": n})
	}
}

// Sessions

func (s *Server) handleInteract(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r)
	if !ok {
		return
	}
	var req LocationRequest
	if !decode(w, r, &req) {
		return
	}
	loc, ok := parseLocation(w, req.Location)
	if !ok {
		return
	}
	v, err := s.eng.Interact(r.Context(), player, loc)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionDTO(v))
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r)
	if !ok {
		return
	}
	var req OpenRequestDTO
	if !decode(w, r, &req) {
		return
	}
	open := engine.OpenRequest{Player: player, Banner: strings.TrimSpace(req.Banner), Count: req.Count}
	if req.Location != "" {
		loc, ok := parseLocation(w, req.Location)
		if !ok {
			return
		}
		open.Location = &loc
	}
	res, err := s.eng.Open(r.Context(), open)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	out := OpenResponse{
		Session:   sessionDTO(res.Session),
		Plan:      planDTO(res.Plan),
		Requested: res.Requested,
		Balance:   res.Balance,
	}
	if len(res.Results) > 0 {
		out.Results = slotDTOs(res.Results)
	}
	respondJSON(w, http.StatusCreated, out)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r)
	if !ok {
		return
	}
	v, err := s.eng.Session(r.Context(), player)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionDTO(v))
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r)
	if !ok {
		return
	}
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrMsgInvalidSlot)
		return
	}
	res, err := s.eng.Reveal(r.Context(), player, slot)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, slotDTO(res))
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	s.finish(w, r, s.eng.Complete)
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	s.finish(w, r, s.eng.Abandon)
}

func (s *Server) finish(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) ([]gacha.PullResult, error)) {
	player, ok := playerParam(w, r)
	if !ok {
		return
	}
	res, err := fn(r.Context(), player)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, slotDTOs(res))
}

// Admin

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	res, err := s.eng.Reload(r.Context())
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	out := ReloadResponse{Banners: res.Banners, Deferred: res.Deferred}
	for _, d := range res.Diagnostics {
		out.Warnings = append(out.Warnings, d.String())
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleSaveBanners(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.SaveBanners(r.Context()); err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	n, err := s.eng.Flush(r.Context())
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"players": n})
}
