package form

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/scrapedesk/models"
)

func names(f Fields) []string {
	out := make([]string, len(f))
	for i, s := range f {
		out[i] = s.Name
	}
	return out
}

func TestFieldsAlwaysKeepOne(t *testing.T) {
	f := NewFields()
	require.Len(t, f, 1)
	assert.NotEmpty(t, f[0].ID)

	assert.False(t, f.Remove(f[0].ID))
	assert.Len(t, f, 1)

	added := f.Add()
	assert.Len(t, f, 2)
	assert.NotEqual(t, f[0].ID, added.ID)

	assert.True(t, f.Remove(added.ID))
	assert.Len(t, f, 1)
	assert.False(t, f.Remove("missing"))
}

func TestFieldsMove(t *testing.T) {
	tests := []struct {
		name string
		from int
		to   int
		want []string
	}{
		{"forward", 0, 2, []string{"b", "c", "a", "d"}},
		{"backward", 3, 1, []string{"a", "d", "b", "c"}},
		{"same", 1, 1, []string{"a", "b", "c", "d"}},
		{"clamped high", 0, 99, []string{"b", "c", "d", "a"}},
		{"clamped low", 2, -5, []string{"c", "a", "b", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Fields{
				{ID: "1", Name: "a"}, {ID: "2", Name: "b"},
				{ID: "3", Name: "c"}, {ID: "4", Name: "d"},
			}
			require.True(t, f.Move(f[tt.from].ID, tt.to))
			assert.Equal(t, tt.want, names(f))
		})
	}
}

func TestFieldsOrderAndCustomFields(t *testing.T) {
	f := Fields{
		{ID: "1", Name: " title ", Selector: " h2 "},
		{ID: "2", Name: "", Selector: ".x"},
		{ID: "3", Name: "price", Selector: ".price"},
		{ID: "4", Name: "orphan", Selector: ""},
	}
	assert.True(t, f.Update("2", "link", "a"))
	assert.False(t, f.Update("9", "x", "y"))

	assert.Equal(t, []string{"title", "link", "price"}, f.Order())
	assert.Equal(t, []models.CustomField{
		{Name: "title", Selector: "h2"},
		{Name: "link", Selector: "a"},
		{Name: "price", Selector: ".price"},
	}, f.CustomFields())
}

func TestFieldsNormalizeBackfillsIDs(t *testing.T) {
	f := Fields{{Name: "a"}, {ID: "x", Name: "b"}, {ID: "x", Name: "c"}}
	f.normalize()
	assert.NotEmpty(t, f[0].ID)
	assert.Equal(t, "x", f[1].ID)
	assert.NotEqual(t, "x", f[2].ID)

	var empty Fields
	empty.normalize()
	assert.Len(t, empty, 1)
}

func TestDynamicRequest(t *testing.T) {
	s := Default()
	s.DynamicURL = " https://shop.example/list "
	s.ContainerSelector = "div.card"
	s.Fields = Fields{{ID: "1", Name: " name", Selector: "h2"}, {ID: "2", Name: "", Selector: ".p"}}
	s.EnableScrolling = true
	s.MaxScrolls = 3
	s.EnablePagination = true
	s.StartPage, s.EndPage = 2, 4
	s.PaginationType = models.PaginationURLParameter
	s.PageParam = "p"

	req := s.DynamicRequest()
	assert.Equal(t, "https://shop.example/list", req.URL)
	assert.Equal(t, []models.CustomField{{Name: "name", Selector: "h2"}}, req.CustomFields)
	assert.Equal(t, 3, req.MaxScrolls)
	assert.Equal(t, 2, req.StartPage)
	assert.Equal(t, 4, req.EndPage)
	assert.Equal(t, "p", req.PageParam)

	body, err := json.Marshal(req)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"next_button_selector":""`)
}

func TestInteractiveScrapeRequest(t *testing.T) {
	s := Default()
	s.SessionID = "sess-1"
	s.ContainerSelector = "li"
	s.Fields = Fields{{ID: "1", Name: "title", Selector: "a"}}
	s.ScrollToEndPage = true

	req := s.InteractiveScrapeRequest()
	assert.False(t, req.ScrollToEndPage, "scroll to end requires scrolling")
	assert.Nil(t, req.StartPage)

	body, err := json.Marshal(req)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "start_page")
	assert.NotContains(t, string(body), "page_param")

	s.EnableScrolling = true
	s.EnablePagination = true
	s.NumAdditionalPages = 2
	s.PaginationType = models.PaginationNextButton
	s.NextButtonSelector = "a.next"
	s.PageParam = "page"

	req = s.InteractiveScrapeRequest()
	assert.True(t, req.ScrollToEndPage)
	require.NotNil(t, req.StartPage)
	assert.Equal(t, 1, *req.StartPage)
	assert.Equal(t, 3, *req.EndPage)
	assert.Equal(t, "a.next", req.NextButtonSelector)
	assert.Empty(t, req.PageParam)

	s.PaginationType = models.PaginationURLParameter
	req = s.InteractiveScrapeRequest()
	assert.Equal(t, "page", req.PageParam)
	assert.Empty(t, req.NextButtonSelector)
}

func TestInteractiveStartRequest(t *testing.T) {
	s := Default()
	assert.Nil(t, s.InteractiveStartRequest().StartURL)

	body, err := json.Marshal(s.InteractiveStartRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `{"start_url":null}`, string(body))

	s.InteractiveStartURL = "https://example.com"
	require.NotNil(t, s.InteractiveStartRequest().StartURL)
	assert.Equal(t, "https://example.com", *s.InteractiveStartRequest().StartURL)
}

func TestValidate(t *testing.T) {
	valid := func() *State {
		s := Default()
		s.StaticURL = "https://example.com"
		s.DynamicURL = "https://example.com/list"
		s.ContainerSelector = "div.item"
		s.Fields = Fields{{ID: "1", Name: "name", Selector: "h3 > a"}}
		return s
	}

	tests := []struct {
		name    string
		typ     models.ScrapeType
		mutate  func(s *State)
		wantErr string
	}{
		{"static ok", models.ScrapeTypeStatic, func(*State) {}, ""},
		{"static missing url", models.ScrapeTypeStatic, func(s *State) { s.StaticURL = "" }, "url is required"},
		{"static bad scheme", models.ScrapeTypeStatic, func(s *State) { s.StaticURL = "ftp://x" }, "not a valid"},
		{"dynamic ok", models.ScrapeTypeDynamic, func(*State) {}, ""},
		{"dynamic bad container", models.ScrapeTypeDynamic, func(s *State) { s.ContainerSelector = "div[" }, "container"},
		{"dynamic no fields", models.ScrapeTypeDynamic, func(s *State) { s.Fields = NewFields() }, "at least one field"},
		{"dynamic bad field", models.ScrapeTypeDynamic, func(s *State) { s.Fields[0].Selector = "a[href" }, "field 1 (name)"},
		{"dynamic url param missing", models.ScrapeTypeDynamic, func(s *State) {
			s.EnablePagination = true
			s.PaginationType = models.PaginationURLParameter
			s.PageParam = " "
		}, "page parameter"},
		{"dynamic xpath next button", models.ScrapeTypeDynamic, func(s *State) {
			s.EnablePagination = true
			s.NextButtonSelector = "//a[@rel='next']"
		}, ""},
		{"dynamic empty next button", models.ScrapeTypeDynamic, func(s *State) {
			s.EnablePagination = true
			s.NextButtonSelector = ""
		}, ""},
		{"dynamic end before start", models.ScrapeTypeDynamic, func(s *State) {
			s.EnablePagination = true
			s.StartPage, s.EndPage = 3, 2
		}, "end page"},
		{"interactive start blank", models.ScrapeTypeInteractiveStart, func(s *State) { s.InteractiveStartURL = "" }, ""},
		{"interactive start bad", models.ScrapeTypeInteractiveStart, func(s *State) { s.InteractiveStartURL = "nope" }, "not a valid"},
		{"interactive scrape ok", models.ScrapeTypeInteractiveScrape, func(*State) {}, ""},
		{"unknown type", models.ScrapeTypeNone, func(*State) {}, "unknown scrape type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := s.Validate(tt.typ)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var appErr *models.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, models.ErrCodeInvalidInput, appErr.Code)
			assert.Contains(t, appErr.Message, tt.wantErr)
		})
	}
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "form.json")

	fs := Open(path)
	assert.Equal(t, 5, fs.Get().MaxScrolls)

	_, err := fs.Update(func(s *State) error {
		s.DynamicURL = "https://example.com"
		s.Fields[0].Name = "title"
		s.Fields[0].Selector = "h1"
		s.Fields.Add()
		return nil
	})
	require.NoError(t, err)

	reopened := Open(path).Get()
	assert.Equal(t, "https://example.com", reopened.DynamicURL)
	require.Len(t, reopened.Fields, 2)
	assert.Equal(t, "title", reopened.Fields[0].Name)
}

func TestFileStoreUpdateErrorLeavesState(t *testing.T) {
	fs := Open("")
	_, err := fs.Update(func(s *State) error {
		s.StaticURL = "changed"
		return errors.New("nope")
	})
	require.Error(t, err)
	assert.Empty(t, fs.Get().StaticURL)
}

func TestFileStoreGetIsACopy(t *testing.T) {
	fs := Open("")
	s := fs.Get()
	s.Fields[0].Name = "mutated"
	assert.Empty(t, fs.Get().Fields[0].Name)
}

func TestOpenCorruptFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "form.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := Open(path).Get()
	assert.Len(t, s.Fields, 1)
	assert.Equal(t, models.PaginationNextButton, s.PaginationType)
}

func TestFileStoreReplaceKeepsSession(t *testing.T) {
	fs := Open("")
	require.NoError(t, fs.SetSessionID("sess-1"))

	in := Default()
	in.StaticURL = "https://example.com"
	in.SessionID = "from-client"
	in.MaxScrolls = 0

	got, err := fs.Replace(in)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got.StaticURL)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, 1, got.MaxScrolls)
	assert.Equal(t, "sess-1", fs.SessionID())
}
