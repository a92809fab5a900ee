package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/scrapedesk/form"
	"github.com/use-agent/scrapedesk/models"
)

// GetForm returns a handler for GET /api/v1/form.
func GetForm(forms *form.FileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, forms.Get())
	}
}

// PutForm returns a handler for PUT /api/v1/form. The whole form is
// replaced, except the active session id.
func PutForm(forms *form.FileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		in := form.Default()
		if err := c.ShouldBindJSON(in); err != nil {
			invalidInput(c, err)
			return
		}
		s, err := forms.Replace(in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

// AddField returns a handler for POST /api/v1/form/fields.
func AddField(forms *form.FileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var added models.FieldSpec
		s, err := forms.Update(func(s *form.State) error {
			added = s.Fields.Add()
			return nil
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "field": added, "fields": s.Fields})
	}
}

// UpdateField returns a handler for PUT /api/v1/form/fields/:id.
func UpdateField(forms *form.FileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UpdateFieldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err)
			return
		}
		editField(c, forms, func(f *form.Fields, id string) bool {
			return f.Update(id, req.Name, req.Selector)
		})
	}
}

// DeleteField returns a handler for DELETE /api/v1/form/fields/:id.
// Removing the last field is refused; the form always keeps one row.
func DeleteField(forms *form.FileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		editField(c, forms, func(f *form.Fields, id string) bool {
			return f.Remove(id)
		})
	}
}

// MoveField returns a handler for POST /api/v1/form/fields/:id/move.
func MoveField(forms *form.FileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.MoveFieldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err)
			return
		}
		editField(c, forms, func(f *form.Fields, id string) bool {
			return f.Move(id, req.Index)
		})
	}
}

// editField applies edit to the field list of the saved form. A false
// return from edit means the field was not found, or was the last one.
func editField(c *gin.Context, forms *form.FileStore, edit func(f *form.Fields, id string) bool) {
	id := c.Param("id")
	var applied bool
	s, err := forms.Update(func(s *form.State) error {
		applied = edit(&s.Fields, id)
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if !applied {
		respondError(c, models.NewAppError(models.ErrCodeNotFound,
			"field "+id+" not found or cannot be removed", nil))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "fields": s.Fields})
}
