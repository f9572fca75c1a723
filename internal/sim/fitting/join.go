package fitting

import (
	"fmt"

	"github.com/google/uuid"

	"avatarkit.gg/internal/protocol"
	"avatarkit.gg/internal/sim/catalogs"
)

func (r *Room) joinSession(req JoinRequest) (JoinResponse, string, bool) {
	// A known token reattaches to its detached session: same id, same token,
	// rate-limit windows intact. An unknown or still-attached token falls
	// through to a fresh session.
	if req.ResumeToken != "" {
		if s := r.detachedByToken(req.ResumeToken); s != nil {
			s.Out = req.Out
			s.detached = false
			if req.ClientName != "" {
				s.ClientName = req.ClientName
			}
			welcome := r.buildWelcome(s.ID, s.ResumeToken)
			return JoinResponse{Welcome: welcome, Catalogs: r.buildCatalogMsgs()}, s.ID, true
		}
	}

	idNum := r.nextSessionNum.Add(1)
	sid := fmt.Sprintf("S%04d", idNum)

	s := &session{
		ID:          sid,
		ClientName:  req.ClientName,
		ResumeToken: uuid.NewString(),
		Out:         req.Out,
	}
	r.sessions[sid] = s

	welcome := r.buildWelcome(sid, s.ResumeToken)
	return JoinResponse{Welcome: welcome, Catalogs: r.buildCatalogMsgs()}, sid, false
}

func (r *Room) detachedByToken(token string) *session {
	for _, s := range r.sessions {
		if s.detached && s.ResumeToken == token {
			return s
		}
	}
	return nil
}

func (r *Room) buildWelcome(sessionID, resumeToken string) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		ResumeToken:     resumeToken,
		RoomParams: protocol.RoomParams{
			RoomID:           r.cfg.ID,
			TickRateHz:       r.cfg.TickRateHz,
			AutoRetryStored:  r.cfg.AutoRetryStored,
			DefaultEaseTicks: r.cfg.DefaultEaseTicks,
		},
		Catalogs: protocol.CatalogDigests{
			Locations: protocol.DigestRef{
				Digest: r.catalogs.Locations.Digest,
				Count:  len(r.catalogs.Locations.Palette),
			},
			Accessories: protocol.DigestRef{
				Digest: r.catalogs.Accessories.Digest,
				Count:  len(r.catalogs.Accessories.Order),
			},
			Outfits: protocol.DigestRef{
				Digest: r.catalogs.Outfits.Digest,
				Count:  len(r.catalogs.Outfits.Order),
			},
		},
	}
}

func (r *Room) buildCatalogMsgs() []protocol.CatalogMsg {
	accDefs := make([]catalogs.AccessoryDef, 0, len(r.catalogs.Accessories.Order))
	for _, id := range r.catalogs.Accessories.Order {
		accDefs = append(accDefs, r.catalogs.Accessories.ByID[id])
	}
	outDefs := make([]catalogs.OutfitDef, 0, len(r.catalogs.Outfits.Order))
	for _, id := range r.catalogs.Outfits.Order {
		outDefs = append(outDefs, r.catalogs.Outfits.ByID[id])
	}
	return []protocol.CatalogMsg{
		{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            "locations",
			Digest:          r.catalogs.Locations.Digest,
			Data:            r.catalogs.Locations.Palette,
		},
		{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            "accessories",
			Digest:          r.catalogs.Accessories.Digest,
			Data:            accDefs,
		},
		{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            "outfits",
			Digest:          r.catalogs.Outfits.Digest,
			Data:            outDefs,
		},
	}
}
