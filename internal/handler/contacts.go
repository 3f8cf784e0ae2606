package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"firewatch/internal/dto"
	"firewatch/internal/logger"
	"firewatch/internal/model"
	"firewatch/internal/repository"
)

// CreateContactHandler handles POST /contacts.
func CreateContactHandler(logger *logger.Logger, repo repository.ContactRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.ContactCreate
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid contact")
			return
		}

		c := &model.Contact{FullName: req.FullName, Phone: req.Phone, Email: req.Email}
		if _, err := repo.Create(c); err != nil {
			logger.Error("Error creating contact: %v", err)
			writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		logger.Info("Contact %d created", c.ID)
		writeJSON(w, http.StatusCreated, c)
	}
}

// ListContactsHandler handles GET /contacts.
func ListContactsHandler(logger *logger.Logger, repo repository.ContactRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contacts, err := repo.GetAll()
		if err != nil {
			logger.Error("Error listing contacts: %v", err)
			writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if contacts == nil {
			contacts = []model.Contact{}
		}
		writeJSON(w, http.StatusOK, contacts)
	}
}

// DeleteContactHandler handles DELETE /contacts/{id}.
func DeleteContactHandler(logger *logger.Logger, repo repository.ContactRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid id")
			return
		}

		found, err := repo.Delete(id)
		if err != nil {
			logger.Error("Error deleting contact %d: %v", id, err)
			writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if !found {
			writeDetail(w, http.StatusNotFound, "Not found")
			return
		}

		logger.Info("Contact %d deleted", id)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
