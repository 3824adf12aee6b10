package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/MrEthical07/phonebook/contacts"
	"github.com/gin-gonic/gin"
)

// GET /api/contacts?page=&limit=&favorite=
func (h *handler) listContacts(c *gin.Context) {
	var q listContactsQuery
	if err := bindQuery(c, &q); err != nil {
		writeError(c, h.logger, err)
		return
	}

	list, err := h.contacts.List(c.Request.Context(), principal(c).UserID, q.Page, q.Limit, q.Favorite)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) getContact(c *gin.Context) {
	contact, err := h.contacts.Get(c.Request.Context(), principal(c).UserID, c.Param("contactId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *handler) addContact(c *gin.Context) {
	var in contacts.NewContact
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, h.logger, bindingError(err))
		return
	}

	contact, err := h.contacts.Add(c.Request.Context(), principal(c).UserID, in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

// PUT /api/contacts/:contactId with any subset of the fields. An empty body
// is answered with "Missing fields".
func (h *handler) updateContact(c *gin.Context) {
	var p contacts.Patch
	if err := c.ShouldBindJSON(&p); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, h.logger, bindingError(err))
		return
	}

	contact, err := h.contacts.Update(c.Request.Context(), principal(c).UserID, c.Param("contactId"), p)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *handler) removeContact(c *gin.Context) {
	if err := h.contacts.Remove(c.Request.Context(), principal(c).UserID, c.Param("contactId")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Contact deleted"})
}

// PATCH /api/contacts/:contactId/favorite
func (h *handler) setFavorite(c *gin.Context) {
	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, h.logger, bindingError(err))
		return
	}

	contact, err := h.contacts.SetFavorite(c.Request.Context(), principal(c).UserID, c.Param("contactId"), req.Favorite)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}
