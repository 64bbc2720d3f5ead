package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"railplan/internal/domain"
	"railplan/internal/hub"
	"railplan/internal/planner"
)

// WSHandler serves interactive planning over a websocket. Clients send plan
// requests and receive results plus catalog_updated broadcasts on timetable
// reloads.
type WSHandler struct {
	hub     *hub.Hub
	planner *planner.Planner
	logger  *slog.Logger
}

func NewWSHandler(h *hub.Hub, p *planner.Planner, logger *slog.Logger) *WSHandler {
	return &WSHandler{hub: h, planner: p, logger: logger}
}

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type PlanResultMessage struct {
	Type    string       `json:"type"`
	Payload PlanResponse `json:"payload"`
}

type WSErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type PongMessage struct {
	Type string `json:"type"`
}

// CatalogUpdatedMessage is broadcast to every client after a timetable
// reload so they can refetch routes and replan.
type CatalogUpdatedMessage struct {
	Type       string    `json:"type"`
	Generation uint64    `json:"generation"`
	Routes     int       `json:"routes"`
	ServerTime time.Time `json:"server_time"`
}

func NewCatalogUpdatedMessage(generation uint64, routes int) []byte {
	data, _ := json.Marshal(CatalogUpdatedMessage{
		Type:       "catalog_updated",
		Generation: generation,
		Routes:     routes,
		ServerTime: time.Now(),
	})
	return data
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := hub.NewClient(clientID, 64)

	h.hub.Register(client)
	ServerStats.IncWSConnections()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, conn, client)

	h.readLoop(ctx, conn, client)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.hub.Unregister(client)
		ServerStats.DecWSConnections()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "client_id", client.ID, "error", err)
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}
		ServerStats.IncWSMessagesIn()

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid message format", "client_id", client.ID, "error", err)
			continue
		}

		switch msg.Type {
		case "plan":
			h.handlePlan(client, msg.Payload)

		case "ping":
			h.sendPong(client)
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
			ServerStats.IncWSMessagesOut()

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) handlePlan(client *hub.Client, payload json.RawMessage) {
	var req PlanRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(client, "invalid plan payload")
		return
	}
	req.normalize()

	if req.Origin == "" || req.Destination == "" || req.StartDate == "" {
		h.sendError(client, "origin, destination and start_date are required")
		return
	}
	startDate, err := domain.ParseDate(req.StartDate)
	if err != nil {
		h.sendError(client, "start_date must be YYYY-MM-DD")
		return
	}
	layovers := make(domain.LayoverRequest, len(req.Stops))
	for _, s := range req.Stops {
		layovers[s.City] = s.Hours
	}

	itin, err := h.planner.BuildItinerary(planner.ItineraryRequest{
		RouteIDs:    req.routeSelection(),
		Origin:      req.Origin,
		Destination: req.Destination,
		StartDate:   startDate,
		Layovers:    layovers,
	})
	if err != nil {
		h.sendError(client, err.Error())
		return
	}
	ServerStats.IncPlansBuilt()

	h.send(client, PlanResultMessage{Type: "plan_result", Payload: buildPlanResponse(itin)})
}

func (h *WSHandler) sendPong(client *hub.Client) {
	h.send(client, PongMessage{Type: "pong"})
}

func (h *WSHandler) sendError(client *hub.Client, message string) {
	h.send(client, WSErrorMessage{Type: "error", Error: message})
}

func (h *WSHandler) send(client *hub.Client, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case client.Send <- data:
	default:
		h.logger.Debug("client buffer full, dropping message", "client_id", client.ID)
	}
}
