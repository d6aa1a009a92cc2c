package roomhandler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatrelay/internal/registry"
)

// Handler exposes read-only room introspection over REST, backed by the same
// registry the websocket sessions use.
type Handler struct {
	reg registry.Registry
}

func New(reg registry.Registry) *Handler { return &Handler{reg: reg} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms", h.rooms)
	r.GET("/rooms/:name/clients", h.clients)
}

func (h *Handler) rooms(c *gin.Context) {
	rooms, err := h.reg.ListRooms(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, RoomsResponse{Rooms: rooms})
}

func (h *Handler) clients(c *gin.Context) {
	room := c.Param("name")
	clients, err := h.reg.ListClients(c, room)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, ClientsResponse{Room: room, Clients: clients})
}
